// Package domain contains persistence models for the project service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Project groups flags and environments under an organization.
type Project struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID       int64             `gorm:"column:org_id;not null;index;uniqueIndex:ux_projects_org_key" json:"org_id"`
	Key         string            `gorm:"type:text;not null;uniqueIndex:ux_projects_org_key" json:"key"`
	Name        string            `gorm:"type:text;not null" json:"name"`
	Description *string           `gorm:"type:text" json:"description,omitempty"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb" json:"metadata"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Project) TableName() string { return "projects" }
