package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/beaconhq/beacon/internal/environment/domain"
	flagdomain "github.com/beaconhq/beacon/internal/flag/domain"
	"github.com/beaconhq/beacon/internal/orgcontext"
	projectdomain "github.com/beaconhq/beacon/internal/project/domain"
	"github.com/beaconhq/beacon/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("environment.service"),
		repo:  p.Repo,
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.CreatedResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	projectID, err := snowflake.ParseString(strings.TrimSpace(req.ProjectID))
	if err != nil {
		return nil, domain.ErrInvalidProject
	}

	var project projectdomain.Project
	err = s.db.WithContext(ctx).
		First(&project, "org_id = ? AND id = ?", int64(orgID), projectID.Int64()).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvalidProject
		}
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	key := slug.Make(strings.TrimSpace(req.Key))
	if key == "" {
		key = slug.Make(name)
	}
	if key == "" {
		return nil, domain.ErrInvalidKey
	}

	clientKey, clientHash, err := domain.GenerateSDKKey(domain.ClientKeyPrefix)
	if err != nil {
		return nil, err
	}
	serverKey, serverHash, err := domain.GenerateSDKKey(domain.ServerKeyPrefix)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	env := &domain.Environment{
		ID:            s.genID.Generate(),
		OrgID:         int64(orgID),
		ProjectID:     projectID.Int64(),
		Key:           key,
		Name:          name,
		ClientKeyHash: clientHash,
		ServerKeyHash: serverHash,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Create(ctx, tx, env); err != nil {
			return err
		}
		return s.provisionFlagStates(ctx, tx, env, now)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrKeyTaken
		}
		return nil, err
	}

	return &domain.CreatedResponse{
		Response:  toResponse(env),
		ClientKey: clientKey,
		ServerKey: serverKey,
	}, nil
}

// provisionFlagStates backfills one disabled state per existing flag so
// every (flag, environment) pair always has a row.
func (s *Service) provisionFlagStates(ctx context.Context, tx *gorm.DB, env *domain.Environment, now time.Time) error {
	var flags []flagdomain.Flag
	err := tx.WithContext(ctx).
		Where("org_id = ? AND project_id = ?", env.OrgID, env.ProjectID).
		Find(&flags).Error
	if err != nil {
		return err
	}

	for _, f := range flags {
		state := flagdomain.FlagState{
			ID:               s.genID.Generate(),
			FlagID:           f.ID.Int64(),
			EnvironmentID:    env.ID.Int64(),
			Enabled:          false,
			DefaultRollout:   flagdomain.FullRollout,
			DefaultVariation: f.DefaultVariation,
			OffVariation:     f.OffVariation,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.WithContext(ctx).Create(&state).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) List(ctx context.Context, projectID string) ([]domain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	pid, err := snowflake.ParseString(strings.TrimSpace(projectID))
	if err != nil {
		return nil, domain.ErrInvalidProject
	}

	items, err := s.repo.ListByProject(ctx, s.db, int64(orgID), pid.Int64())
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for _, item := range items {
		resp = append(resp, toResponse(&item))
	}

	return resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	envID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, int64(orgID), envID.Int64())
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	resp := toResponse(item)
	return &resp, nil
}

func (s *Service) RotateKeys(ctx context.Context, id string) (*domain.CreatedResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	envID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, int64(orgID), envID.Int64())
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	clientKey, clientHash, err := domain.GenerateSDKKey(domain.ClientKeyPrefix)
	if err != nil {
		return nil, err
	}
	serverKey, serverHash, err := domain.GenerateSDKKey(domain.ServerKeyPrefix)
	if err != nil {
		return nil, err
	}

	item.ClientKeyHash = clientHash
	item.ServerKeyHash = serverHash
	item.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return nil, err
	}

	s.log.Info("sdk keys rotated",
		zap.String("environment_id", item.ID.String()),
		zap.String("environment", item.Key),
	)

	return &domain.CreatedResponse{
		Response:  toResponse(item),
		ClientKey: clientKey,
		ServerKey: serverKey,
	}, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ErrInvalidOrganization
	}

	envID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, int64(orgID), envID.Int64())
	if err != nil {
		return err
	}
	if item == nil {
		return domain.ErrNotFound
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.WithContext(ctx).
			Where("environment_id = ?", envID.Int64()).
			Delete(&flagdomain.FlagState{}).Error
		if err != nil {
			return err
		}
		return s.repo.Delete(ctx, tx, int64(orgID), envID.Int64())
	})
}

func toResponse(env *domain.Environment) domain.Response {
	return domain.Response{
		ID:        env.ID.String(),
		ProjectID: snowflake.ID(env.ProjectID).String(),
		Key:       env.Key,
		Name:      env.Name,
		CreatedAt: env.CreatedAt,
		UpdatedAt: env.UpdatedAt,
	}
}
