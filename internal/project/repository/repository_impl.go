package repository

import (
	"context"
	"errors"

	"github.com/beaconhq/beacon/internal/project/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, project *domain.Project) error {
	return db.WithContext(ctx).Create(project).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id int64) (*domain.Project, error) {
	var project domain.Project
	err := db.WithContext(ctx).First(&project, "org_id = ? AND id = ?", orgID, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *repo) FindByKey(ctx context.Context, db *gorm.DB, orgID int64, key string) (*domain.Project, error) {
	var project domain.Project
	err := db.WithContext(ctx).First(&project, "org_id = ? AND key = ?", orgID, key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID int64) ([]domain.Project, error) {
	var items []domain.Project
	if err := db.WithContext(ctx).Where("org_id = ?", orgID).Order("created_at ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, project *domain.Project) error {
	return db.WithContext(ctx).Save(project).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, orgID, id int64) error {
	return db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, id).Delete(&domain.Project{}).Error
}
