// Package domain contains persistence models for flags, their
// per-environment states, and targeting rules.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// FullRollout is the percentage that includes every user.
const FullRollout = 100

// Flag is the project-level definition. The variation values stored
// here seed the per-environment states when a flag or environment is
// created.
type Flag struct {
	ID               snowflake.ID   `gorm:"primaryKey" json:"id"`
	OrgID            int64          `gorm:"column:org_id;not null;index" json:"org_id"`
	ProjectID        int64          `gorm:"column:project_id;not null;index;uniqueIndex:ux_flags_project_key" json:"project_id"`
	Key              string         `gorm:"type:text;not null;uniqueIndex:ux_flags_project_key" json:"key"`
	Name             string         `gorm:"type:text;not null" json:"name"`
	Description      *string        `gorm:"type:text" json:"description,omitempty"`
	Tags             pq.StringArray `gorm:"type:text[]" json:"tags"`
	DefaultVariation datatypes.JSON `gorm:"type:jsonb" json:"default_variation"`
	OffVariation     datatypes.JSON `gorm:"type:jsonb" json:"off_variation"`
	Archived         bool           `gorm:"not null;default:false" json:"archived"`
	CreatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Flag) TableName() string { return "flags" }

// FlagState is the per-(flag, environment) configuration the evaluator
// reads. Exactly one row exists per pair.
type FlagState struct {
	ID               snowflake.ID   `gorm:"primaryKey" json:"id"`
	FlagID           int64          `gorm:"column:flag_id;not null;uniqueIndex:ux_flag_states_flag_env" json:"flag_id"`
	EnvironmentID    int64          `gorm:"column:environment_id;not null;index;uniqueIndex:ux_flag_states_flag_env" json:"environment_id"`
	Enabled          bool           `gorm:"not null;default:false" json:"enabled"`
	DefaultRollout   int            `gorm:"not null;default:100" json:"default_rollout"`
	DefaultVariation datatypes.JSON `gorm:"type:jsonb" json:"default_variation"`
	OffVariation     datatypes.JSON `gorm:"type:jsonb" json:"off_variation"`
	CreatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (FlagState) TableName() string { return "flag_states" }

// Rule is an ordered targeting override attached to a flag state.
// Clauses holds a JSON array of clause specs, all of which must match.
type Rule struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	FlagStateID int64          `gorm:"column:flag_state_id;not null;index" json:"flag_state_id"`
	Priority    int            `gorm:"not null;default:0" json:"priority"`
	Clauses     datatypes.JSON `gorm:"type:jsonb;not null" json:"clauses"`
	Variation   datatypes.JSON `gorm:"type:jsonb" json:"variation"`
	Rollout     int            `gorm:"not null;default:100" json:"rollout"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Rule) TableName() string { return "rules" }
