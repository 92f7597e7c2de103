package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, project *Project) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id int64) (*Project, error)
	FindByKey(ctx context.Context, db *gorm.DB, orgID int64, key string) (*Project, error)
	List(ctx context.Context, db *gorm.DB, orgID int64) ([]Project, error)
	Update(ctx context.Context, db *gorm.DB, project *Project) error
	Delete(ctx context.Context, db *gorm.DB, orgID, id int64) error
}
