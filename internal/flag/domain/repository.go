package domain

import (
	"context"

	"gorm.io/gorm"
)

type ListFilter struct {
	Tag      string
	Archived *bool
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, flag *Flag) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id int64) (*Flag, error)
	FindByKey(ctx context.Context, db *gorm.DB, orgID, projectID int64, key string) (*Flag, error)
	List(ctx context.Context, db *gorm.DB, orgID, projectID int64, filter ListFilter) ([]Flag, error)
	Update(ctx context.Context, db *gorm.DB, flag *Flag) error

	FindState(ctx context.Context, db *gorm.DB, flagID, environmentID int64) (*FlagState, error)
	ListStates(ctx context.Context, db *gorm.DB, flagID int64) ([]FlagState, error)
	UpdateState(ctx context.Context, db *gorm.DB, state *FlagState) error

	FindRule(ctx context.Context, db *gorm.DB, flagStateID, ruleID int64) (*Rule, error)
	ListRules(ctx context.Context, db *gorm.DB, flagStateID int64) ([]Rule, error)
	CreateRule(ctx context.Context, db *gorm.DB, rule *Rule) error
	UpdateRule(ctx context.Context, db *gorm.DB, rule *Rule) error
	DeleteRule(ctx context.Context, db *gorm.DB, flagStateID, ruleID int64) error
}
