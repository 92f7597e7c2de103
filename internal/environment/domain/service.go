package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*CreatedResponse, error)
	List(ctx context.Context, projectID string) ([]Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	RotateKeys(ctx context.Context, id string) (*CreatedResponse, error)
	Delete(ctx context.Context, id string) error
}

type CreateRequest struct {
	ProjectID string `json:"project_id"`
	Key       string `json:"key"`
	Name      string `json:"name"`
}

type Response struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreatedResponse carries the plain SDK keys. They are returned exactly
// once, on creation or rotation, and are not recoverable afterwards.
type CreatedResponse struct {
	Response
	ClientKey string `json:"client_key"`
	ServerKey string `json:"server_key"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidProject      = errors.New("invalid_project")
	ErrInvalidKey          = errors.New("invalid_key")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidID           = errors.New("invalid_id")
	ErrKeyTaken            = errors.New("key_taken")
	ErrNotFound            = errors.New("not_found")
)
