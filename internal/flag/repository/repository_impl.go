package repository

import (
	"context"
	"errors"

	"github.com/beaconhq/beacon/internal/flag/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, flag *domain.Flag) error {
	return db.WithContext(ctx).Create(flag).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id int64) (*domain.Flag, error) {
	var flag domain.Flag
	err := db.WithContext(ctx).First(&flag, "org_id = ? AND id = ?", orgID, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &flag, nil
}

func (r *repo) FindByKey(ctx context.Context, db *gorm.DB, orgID, projectID int64, key string) (*domain.Flag, error) {
	var flag domain.Flag
	err := db.WithContext(ctx).
		First(&flag, "org_id = ? AND project_id = ? AND key = ?", orgID, projectID, key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &flag, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID, projectID int64, filter domain.ListFilter) ([]domain.Flag, error) {
	q := db.WithContext(ctx).Where("org_id = ? AND project_id = ?", orgID, projectID)
	if filter.Tag != "" {
		q = q.Where("? = ANY(tags)", filter.Tag)
	}
	if filter.Archived != nil {
		q = q.Where("archived = ?", *filter.Archived)
	}

	var items []domain.Flag
	if err := q.Order("key ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, flag *domain.Flag) error {
	return db.WithContext(ctx).Save(flag).Error
}

func (r *repo) FindState(ctx context.Context, db *gorm.DB, flagID, environmentID int64) (*domain.FlagState, error) {
	var state domain.FlagState
	err := db.WithContext(ctx).
		First(&state, "flag_id = ? AND environment_id = ?", flagID, environmentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *repo) ListStates(ctx context.Context, db *gorm.DB, flagID int64) ([]domain.FlagState, error) {
	var items []domain.FlagState
	err := db.WithContext(ctx).
		Where("flag_id = ?", flagID).
		Order("environment_id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateState(ctx context.Context, db *gorm.DB, state *domain.FlagState) error {
	return db.WithContext(ctx).Save(state).Error
}

func (r *repo) FindRule(ctx context.Context, db *gorm.DB, flagStateID, ruleID int64) (*domain.Rule, error) {
	var rule domain.Rule
	err := db.WithContext(ctx).
		First(&rule, "flag_state_id = ? AND id = ?", flagStateID, ruleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *repo) ListRules(ctx context.Context, db *gorm.DB, flagStateID int64) ([]domain.Rule, error) {
	var items []domain.Rule
	err := db.WithContext(ctx).
		Where("flag_state_id = ?", flagStateID).
		Order("priority ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CreateRule(ctx context.Context, db *gorm.DB, rule *domain.Rule) error {
	return db.WithContext(ctx).Create(rule).Error
}

func (r *repo) UpdateRule(ctx context.Context, db *gorm.DB, rule *domain.Rule) error {
	return db.WithContext(ctx).Save(rule).Error
}

func (r *repo) DeleteRule(ctx context.Context, db *gorm.DB, flagStateID, ruleID int64) error {
	return db.WithContext(ctx).
		Where("flag_state_id = ? AND id = ?", flagStateID, ruleID).
		Delete(&domain.Rule{}).Error
}
