// Package domain contains persistence models for the environment service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Environment is a deploy target of a project (production, staging, ...).
// Each environment carries one client-side and one server-side SDK key;
// only the sha256 hashes are stored.
type Environment struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID         int64        `gorm:"column:org_id;not null;index" json:"org_id"`
	ProjectID     int64        `gorm:"column:project_id;not null;index;uniqueIndex:ux_environments_project_key" json:"project_id"`
	Key           string       `gorm:"type:text;not null;uniqueIndex:ux_environments_project_key" json:"key"`
	Name          string       `gorm:"type:text;not null" json:"name"`
	ClientKeyHash string       `gorm:"type:text;not null;uniqueIndex:ux_environments_client_key_hash" json:"-"`
	ServerKeyHash string       `gorm:"type:text;not null;uniqueIndex:ux_environments_server_key_hash" json:"-"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Environment) TableName() string { return "environments" }
