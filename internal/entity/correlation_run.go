package entity

import (
	"database/sql"
	"time"

	"github.com/guregu/null/v6"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// RunStatus is the outcome of a correlation run.
type RunStatus string

const (
	RunStatusRunning      RunStatus = "running"
	RunStatusCompleted    RunStatus = "completed"
	RunStatusInsufficient RunStatus = "insufficient_data"
	RunStatusFailed       RunStatus = "failed"
	RunStatusCancelled    RunStatus = "cancelled"
)

// CorrelationRun is the audit record of one pipeline execution. It keeps run metadata only.
type CorrelationRun struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	RunID        string         `gorm:"type:uuid;uniqueIndex;not null" json:"run_id"`
	Ticker       string         `gorm:"type:varchar(20);not null" json:"ticker"`
	RangeStart   time.Time      `gorm:"type:date;not null" json:"range_start"`
	RangeEnd     time.Time      `gorm:"type:date;not null" json:"range_end"`
	ModelVersion string         `gorm:"type:varchar(100)" json:"model_version"`
	NewsSource   string         `gorm:"type:varchar(50)" json:"news_source"`
	Status       RunStatus      `gorm:"type:varchar(20);not null" json:"status"`
	PearsonR     null.Float     `json:"pearson_r"`
	SampleSize   int            `json:"sample_size"`
	Stats        datatypes.JSON `gorm:"type:jsonb" json:"stats"`
	Warnings     pq.StringArray `gorm:"type:text[]" json:"warnings"`
	ErrorMessage sql.NullString `gorm:"type:text" json:"error_message"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  sql.NullTime   `json:"completed_at"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the CorrelationRun model.
func (CorrelationRun) TableName() string {
	return "correlation_runs"
}
