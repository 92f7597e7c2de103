package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Archive(ctx context.Context, id string) (*Response, error)

	ListStates(ctx context.Context, flagID string) ([]StateResponse, error)
	UpdateState(ctx context.Context, req UpdateStateRequest) (*StateResponse, error)
	ToggleState(ctx context.Context, req ToggleStateRequest) (*StateResponse, error)

	ListRules(ctx context.Context, flagID, environmentID string) ([]RuleResponse, error)
	CreateRule(ctx context.Context, req CreateRuleRequest) (*RuleResponse, error)
	UpdateRule(ctx context.Context, req UpdateRuleRequest) (*RuleResponse, error)
	DeleteRule(ctx context.Context, flagID, environmentID, ruleID string) error
}

type CreateRequest struct {
	ProjectID        string          `json:"project_id"`
	Key              string          `json:"key"`
	Name             string          `json:"name"`
	Description      *string         `json:"description"`
	Tags             []string        `json:"tags"`
	DefaultVariation json.RawMessage `json:"default_variation"`
	OffVariation     json.RawMessage `json:"off_variation"`
}

type ListRequest struct {
	ProjectID string
	Tag       string
	Archived  *bool
}

type UpdateRequest struct {
	ID          string   `json:"-"`
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags"`
}

type Response struct {
	ID               string          `json:"id"`
	ProjectID        string          `json:"project_id"`
	Key              string          `json:"key"`
	Name             string          `json:"name"`
	Description      *string         `json:"description,omitempty"`
	Tags             []string        `json:"tags"`
	DefaultVariation json.RawMessage `json:"default_variation"`
	OffVariation     json.RawMessage `json:"off_variation"`
	Archived         bool            `json:"archived"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type UpdateStateRequest struct {
	FlagID           string           `json:"-"`
	EnvironmentID    string           `json:"-"`
	Enabled          *bool            `json:"enabled"`
	DefaultRollout   *int             `json:"default_rollout"`
	DefaultVariation *json.RawMessage `json:"default_variation"`
	OffVariation     *json.RawMessage `json:"off_variation"`
}

type ToggleStateRequest struct {
	FlagID        string `json:"-"`
	EnvironmentID string `json:"-"`
	Enabled       bool   `json:"enabled"`
}

type StateResponse struct {
	ID               string          `json:"id"`
	FlagID           string          `json:"flag_id"`
	EnvironmentID    string          `json:"environment_id"`
	Enabled          bool            `json:"enabled"`
	DefaultRollout   int             `json:"default_rollout"`
	DefaultVariation json.RawMessage `json:"default_variation"`
	OffVariation     json.RawMessage `json:"off_variation"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type CreateRuleRequest struct {
	FlagID        string          `json:"-"`
	EnvironmentID string          `json:"-"`
	Priority      int             `json:"priority"`
	Clauses       json.RawMessage `json:"clauses"`
	Variation     json.RawMessage `json:"variation"`
	Rollout       *int            `json:"rollout"`
}

type UpdateRuleRequest struct {
	FlagID        string           `json:"-"`
	EnvironmentID string           `json:"-"`
	RuleID        string           `json:"-"`
	Priority      *int             `json:"priority"`
	Clauses       *json.RawMessage `json:"clauses"`
	Variation     *json.RawMessage `json:"variation"`
	Rollout       *int             `json:"rollout"`
}

type RuleResponse struct {
	ID        string          `json:"id"`
	Priority  int             `json:"priority"`
	Clauses   json.RawMessage `json:"clauses"`
	Variation json.RawMessage `json:"variation"`
	Rollout   int             `json:"rollout"`
	UpdatedAt time.Time       `json:"updated_at"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidProject      = errors.New("invalid_project")
	ErrInvalidKey          = errors.New("invalid_key")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidVariation    = errors.New("invalid_variation")
	ErrInvalidRollout      = errors.New("invalid_rollout")
	ErrInvalidClauses      = errors.New("invalid_clauses")
	ErrKeyTaken            = errors.New("key_taken")
	ErrNotFound            = errors.New("not_found")
	ErrStateNotFound       = errors.New("state_not_found")
	ErrRuleNotFound        = errors.New("rule_not_found")
)
