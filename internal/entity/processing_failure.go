package entity

import (
	"time"
)

// ProcessingFailure is a dead-letter record for a unit of work that exhausted
// its retries. ArticleID is nil when the queue message was malformed and the
// article could not be resolved.
type ProcessingFailure struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ArticleID      *uint     `json:"article_id,omitempty"`
	ErrorMessage   string    `json:"error_message"`
	AttemptCount   int       `gorm:"not null;default:1" json:"attempt_count"`
	FirstFailureAt time.Time `gorm:"not null;autoCreateTime" json:"first_failure_at"`
	LastFailureAt  time.Time `gorm:"not null;autoCreateTime" json:"last_failure_at"`
	Resolved       bool      `gorm:"not null;default:false" json:"resolved"`
}

// TableName specifies the table name for the ProcessingFailure model.
func (ProcessingFailure) TableName() string {
	return "processing_failures"
}
