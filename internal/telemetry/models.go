// Package telemetry persists evaluation outcomes asynchronously so the
// evaluation hot path never waits on the database.
package telemetry

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Event is one stored evaluation outcome.
type Event struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	EventID       string       `gorm:"type:text;not null;uniqueIndex:ux_evaluation_events_event_id" json:"event_id"`
	EnvironmentID int64        `gorm:"column:environment_id;not null;index" json:"environment_id"`
	FlagKey       string       `gorm:"type:text;not null;index" json:"flag_key"`
	UserKey       string       `gorm:"type:text;not null" json:"user_key"`
	Reason        string       `gorm:"type:text;not null" json:"reason"`
	RuleID        *string      `gorm:"type:text" json:"rule_id,omitempty"`
	EvaluatedAt   time.Time    `gorm:"not null;index" json:"evaluated_at"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Event) TableName() string { return "evaluation_events" }
