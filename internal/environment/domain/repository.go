package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, env *Environment) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id int64) (*Environment, error)
	FindByKeyHash(ctx context.Context, db *gorm.DB, keyHash string) (*Environment, error)
	ListByProject(ctx context.Context, db *gorm.DB, orgID, projectID int64) ([]Environment, error)
	Update(ctx context.Context, db *gorm.DB, env *Environment) error
	Delete(ctx context.Context, db *gorm.DB, orgID, id int64) error
}
