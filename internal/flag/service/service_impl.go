package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	environmentdomain "github.com/beaconhq/beacon/internal/environment/domain"
	"github.com/beaconhq/beacon/internal/evaluation"
	"github.com/beaconhq/beacon/internal/flag/domain"
	"github.com/beaconhq/beacon/internal/orgcontext"
	projectdomain "github.com/beaconhq/beacon/internal/project/domain"
	"github.com/beaconhq/beacon/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
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
		log:   p.Log.Named("flag.service"),
		repo:  p.Repo,
		genID: p.GenID,
	}
}

var (
	variationTrue  = json.RawMessage(`true`)
	variationFalse = json.RawMessage(`false`)
)

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
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

	defaultVariation := req.DefaultVariation
	if len(defaultVariation) == 0 {
		defaultVariation = variationTrue
	}
	offVariation := req.OffVariation
	if len(offVariation) == 0 {
		offVariation = variationFalse
	}
	if !json.Valid(defaultVariation) || !json.Valid(offVariation) {
		return nil, domain.ErrInvalidVariation
	}

	description := strings.TrimSpace(ptrToString(req.Description))
	var descriptionPtr *string
	if description != "" {
		descriptionPtr = &description
	}

	now := time.Now().UTC()
	flag := &domain.Flag{
		ID:               s.genID.Generate(),
		OrgID:            int64(orgID),
		ProjectID:        projectID.Int64(),
		Key:              key,
		Name:             name,
		Description:      descriptionPtr,
		Tags:             normalizeTags(req.Tags),
		DefaultVariation: datatypes.JSON(defaultVariation),
		OffVariation:     datatypes.JSON(offVariation),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Create(ctx, tx, flag); err != nil {
			return err
		}
		return s.provisionStates(ctx, tx, flag, now)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrKeyTaken
		}
		return nil, err
	}

	resp := toResponse(flag)
	return &resp, nil
}

// provisionStates creates one disabled state per environment of the
// flag's project so evaluation never has to synthesize a row.
func (s *Service) provisionStates(ctx context.Context, tx *gorm.DB, flag *domain.Flag, now time.Time) error {
	var envs []environmentdomain.Environment
	err := tx.WithContext(ctx).
		Where("org_id = ? AND project_id = ?", flag.OrgID, flag.ProjectID).
		Find(&envs).Error
	if err != nil {
		return err
	}

	for _, env := range envs {
		state := domain.FlagState{
			ID:               s.genID.Generate(),
			FlagID:           flag.ID.Int64(),
			EnvironmentID:    env.ID.Int64(),
			Enabled:          false,
			DefaultRollout:   domain.FullRollout,
			DefaultVariation: flag.DefaultVariation,
			OffVariation:     flag.OffVariation,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.WithContext(ctx).Create(&state).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	projectID, err := snowflake.ParseString(strings.TrimSpace(req.ProjectID))
	if err != nil {
		return nil, domain.ErrInvalidProject
	}

	filter := domain.ListFilter{
		Tag:      strings.TrimSpace(req.Tag),
		Archived: req.Archived,
	}
	items, err := s.repo.List(ctx, s.db, int64(orgID), projectID.Int64(), filter)
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
	flag, err := s.findFlag(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := toResponse(flag)
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Response, error) {
	flag, err := s.findFlag(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		flag.Name = name
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if description == "" {
			flag.Description = nil
		} else {
			flag.Description = &description
		}
	}
	if req.Tags != nil {
		flag.Tags = normalizeTags(req.Tags)
	}

	flag.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, flag); err != nil {
		return nil, err
	}

	resp := toResponse(flag)
	return &resp, nil
}

func (s *Service) Archive(ctx context.Context, id string) (*domain.Response, error) {
	flag, err := s.findFlag(ctx, id)
	if err != nil {
		return nil, err
	}

	flag.Archived = true
	flag.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, flag); err != nil {
		return nil, err
	}

	resp := toResponse(flag)
	return &resp, nil
}

func (s *Service) ListStates(ctx context.Context, flagID string) ([]domain.StateResponse, error) {
	flag, err := s.findFlag(ctx, flagID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListStates(ctx, s.db, flag.ID.Int64())
	if err != nil {
		return nil, err
	}

	resp := make([]domain.StateResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, toStateResponse(&item))
	}

	return resp, nil
}

func (s *Service) UpdateState(ctx context.Context, req domain.UpdateStateRequest) (*domain.StateResponse, error) {
	state, err := s.findState(ctx, req.FlagID, req.EnvironmentID)
	if err != nil {
		return nil, err
	}

	if req.Enabled != nil {
		state.Enabled = *req.Enabled
	}
	if req.DefaultRollout != nil {
		if *req.DefaultRollout < 0 || *req.DefaultRollout > domain.FullRollout {
			return nil, domain.ErrInvalidRollout
		}
		state.DefaultRollout = *req.DefaultRollout
	}
	if req.DefaultVariation != nil {
		if !json.Valid(*req.DefaultVariation) {
			return nil, domain.ErrInvalidVariation
		}
		state.DefaultVariation = datatypes.JSON(*req.DefaultVariation)
	}
	if req.OffVariation != nil {
		if !json.Valid(*req.OffVariation) {
			return nil, domain.ErrInvalidVariation
		}
		state.OffVariation = datatypes.JSON(*req.OffVariation)
	}

	state.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateState(ctx, s.db, state); err != nil {
		return nil, err
	}

	resp := toStateResponse(state)
	return &resp, nil
}

func (s *Service) ToggleState(ctx context.Context, req domain.ToggleStateRequest) (*domain.StateResponse, error) {
	state, err := s.findState(ctx, req.FlagID, req.EnvironmentID)
	if err != nil {
		return nil, err
	}

	state.Enabled = req.Enabled
	state.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateState(ctx, s.db, state); err != nil {
		return nil, err
	}

	s.log.Info("flag toggled",
		zap.String("flag_id", req.FlagID),
		zap.String("environment_id", req.EnvironmentID),
		zap.Bool("enabled", req.Enabled),
	)

	resp := toStateResponse(state)
	return &resp, nil
}

func (s *Service) ListRules(ctx context.Context, flagID, environmentID string) ([]domain.RuleResponse, error) {
	state, err := s.findState(ctx, flagID, environmentID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListRules(ctx, s.db, state.ID.Int64())
	if err != nil {
		return nil, err
	}

	resp := make([]domain.RuleResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, toRuleResponse(&item))
	}

	return resp, nil
}

func (s *Service) CreateRule(ctx context.Context, req domain.CreateRuleRequest) (*domain.RuleResponse, error) {
	state, err := s.findState(ctx, req.FlagID, req.EnvironmentID)
	if err != nil {
		return nil, err
	}

	if _, err := evaluation.ParseClauses(req.Clauses); err != nil {
		return nil, domain.ErrInvalidClauses
	}

	rollout := domain.FullRollout
	if req.Rollout != nil {
		if *req.Rollout < 0 || *req.Rollout > domain.FullRollout {
			return nil, domain.ErrInvalidRollout
		}
		rollout = *req.Rollout
	}

	variation := req.Variation
	if len(variation) == 0 {
		variation = json.RawMessage(state.DefaultVariation)
	}
	if !json.Valid(variation) {
		return nil, domain.ErrInvalidVariation
	}

	now := time.Now().UTC()
	rule := &domain.Rule{
		ID:          s.genID.Generate(),
		FlagStateID: state.ID.Int64(),
		Priority:    req.Priority,
		Clauses:     datatypes.JSON(req.Clauses),
		Variation:   datatypes.JSON(variation),
		Rollout:     rollout,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateRule(ctx, s.db, rule); err != nil {
		return nil, err
	}

	resp := toRuleResponse(rule)
	return &resp, nil
}

func (s *Service) UpdateRule(ctx context.Context, req domain.UpdateRuleRequest) (*domain.RuleResponse, error) {
	state, err := s.findState(ctx, req.FlagID, req.EnvironmentID)
	if err != nil {
		return nil, err
	}

	ruleID, err := snowflake.ParseString(strings.TrimSpace(req.RuleID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	rule, err := s.repo.FindRule(ctx, s.db, state.ID.Int64(), ruleID.Int64())
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, domain.ErrRuleNotFound
	}

	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.Clauses != nil {
		if _, err := evaluation.ParseClauses(*req.Clauses); err != nil {
			return nil, domain.ErrInvalidClauses
		}
		rule.Clauses = datatypes.JSON(*req.Clauses)
	}
	if req.Variation != nil {
		if !json.Valid(*req.Variation) {
			return nil, domain.ErrInvalidVariation
		}
		rule.Variation = datatypes.JSON(*req.Variation)
	}
	if req.Rollout != nil {
		if *req.Rollout < 0 || *req.Rollout > domain.FullRollout {
			return nil, domain.ErrInvalidRollout
		}
		rule.Rollout = *req.Rollout
	}

	rule.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateRule(ctx, s.db, rule); err != nil {
		return nil, err
	}

	resp := toRuleResponse(rule)
	return &resp, nil
}

func (s *Service) DeleteRule(ctx context.Context, flagID, environmentID, ruleID string) error {
	state, err := s.findState(ctx, flagID, environmentID)
	if err != nil {
		return err
	}

	id, err := snowflake.ParseString(strings.TrimSpace(ruleID))
	if err != nil {
		return domain.ErrInvalidID
	}

	rule, err := s.repo.FindRule(ctx, s.db, state.ID.Int64(), id.Int64())
	if err != nil {
		return err
	}
	if rule == nil {
		return domain.ErrRuleNotFound
	}

	return s.repo.DeleteRule(ctx, s.db, state.ID.Int64(), id.Int64())
}

func (s *Service) findFlag(ctx context.Context, id string) (*domain.Flag, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	flagID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	flag, err := s.repo.FindByID(ctx, s.db, int64(orgID), flagID.Int64())
	if err != nil {
		return nil, err
	}
	if flag == nil {
		return nil, domain.ErrNotFound
	}
	return flag, nil
}

func (s *Service) findState(ctx context.Context, flagID, environmentID string) (*domain.FlagState, error) {
	flag, err := s.findFlag(ctx, flagID)
	if err != nil {
		return nil, err
	}

	envID, err := snowflake.ParseString(strings.TrimSpace(environmentID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	state, err := s.repo.FindState(ctx, s.db, flag.ID.Int64(), envID.Int64())
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, domain.ErrStateNotFound
	}
	return state, nil
}

func toResponse(flag *domain.Flag) domain.Response {
	return domain.Response{
		ID:               flag.ID.String(),
		ProjectID:        snowflake.ID(flag.ProjectID).String(),
		Key:              flag.Key,
		Name:             flag.Name,
		Description:      flag.Description,
		Tags:             []string(flag.Tags),
		DefaultVariation: json.RawMessage(flag.DefaultVariation),
		OffVariation:     json.RawMessage(flag.OffVariation),
		Archived:         flag.Archived,
		CreatedAt:        flag.CreatedAt,
		UpdatedAt:        flag.UpdatedAt,
	}
}

func toStateResponse(state *domain.FlagState) domain.StateResponse {
	return domain.StateResponse{
		ID:               state.ID.String(),
		FlagID:           snowflake.ID(state.FlagID).String(),
		EnvironmentID:    snowflake.ID(state.EnvironmentID).String(),
		Enabled:          state.Enabled,
		DefaultRollout:   state.DefaultRollout,
		DefaultVariation: json.RawMessage(state.DefaultVariation),
		OffVariation:     json.RawMessage(state.OffVariation),
		UpdatedAt:        state.UpdatedAt,
	}
}

func toRuleResponse(rule *domain.Rule) domain.RuleResponse {
	return domain.RuleResponse{
		ID:        rule.ID.String(),
		Priority:  rule.Priority,
		Clauses:   json.RawMessage(rule.Clauses),
		Variation: json.RawMessage(rule.Variation),
		Rollout:   rule.Rollout,
		UpdatedAt: rule.UpdatedAt,
	}
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func ptrToString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
