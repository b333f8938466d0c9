package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// ProcessedStatus is the terminal outcome recorded for a URL.
type ProcessedStatus string

const (
	StatusProcessed        ProcessedStatus = "processed"
	StatusGenFailed        ProcessedStatus = "gen_failed"
	StatusWpFailed         ProcessedStatus = "wp_failed"
	StatusSeoFailed        ProcessedStatus = "seo_failed"
	StatusSkippedDuplicate ProcessedStatus = "skipped_duplicate"
)

// ProcessedURL records a URL's terminal outcome. At most one row exists per
// URL; once present the collector never re-selects the URL.
type ProcessedURL struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	URL       string          `gorm:"uniqueIndex;not null" json:"url"`
	TopicID   string          `gorm:"index;not null" json:"topic_id"`
	Title     string          `json:"title"`
	Score     float64         `json:"score"`
	Status    ProcessedStatus `gorm:"index;default:'processed'" json:"status"`
	CMSPostID *int            `json:"cms_post_id"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// RuleFlags stores SEO per-rule pass/fail outcomes as JSON.
type RuleFlags map[string]bool

func (f RuleFlags) Value() (driver.Value, error) {
	return json.Marshal(f)
}

func (f *RuleFlags) Scan(value interface{}) error {
	if value == nil {
		*f = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	}
	return nil
}

// SeoReport is an append-only record of one SEO gate evaluation.
type SeoReport struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TopicID       string    `gorm:"index;not null" json:"topic_id"`
	URL           string    `gorm:"index;not null" json:"url"`
	ContentScore  int       `json:"content_score"`
	HeadlineScore int       `json:"headline_score"`
	Verdict       bool      `json:"verdict"`
	Flags         RuleFlags `gorm:"type:json" json:"flags"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ReportRow is a SeoReport joined with the processed status for CLI display.
type ReportRow struct {
	TopicID       string    `json:"topic_id"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	ContentScore  int       `json:"content_score"`
	HeadlineScore int       `json:"headline_score"`
	Verdict       bool      `json:"verdict"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}
