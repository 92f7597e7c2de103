package repository

import (
	"context"
	"errors"

	"github.com/beaconhq/beacon/internal/environment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, env *domain.Environment) error {
	return db.WithContext(ctx).Create(env).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id int64) (*domain.Environment, error) {
	var env domain.Environment
	err := db.WithContext(ctx).First(&env, "org_id = ? AND id = ?", orgID, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &env, nil
}

func (r *repo) FindByKeyHash(ctx context.Context, db *gorm.DB, keyHash string) (*domain.Environment, error) {
	var env domain.Environment
	err := db.WithContext(ctx).
		First(&env, "client_key_hash = ? OR server_key_hash = ?", keyHash, keyHash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &env, nil
}

func (r *repo) ListByProject(ctx context.Context, db *gorm.DB, orgID, projectID int64) ([]domain.Environment, error) {
	var items []domain.Environment
	err := db.WithContext(ctx).
		Where("org_id = ? AND project_id = ?", orgID, projectID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, env *domain.Environment) error {
	return db.WithContext(ctx).Save(env).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, orgID, id int64) error {
	return db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, id).Delete(&domain.Environment{}).Error
}
