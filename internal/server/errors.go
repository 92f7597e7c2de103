package server

import (
	"errors"
	"net/http"
	"strings"

	auditdomain "github.com/beaconhq/beacon/internal/audit/domain"
	environmentdomain "github.com/beaconhq/beacon/internal/environment/domain"
	"github.com/beaconhq/beacon/internal/evaluation"
	flagdomain "github.com/beaconhq/beacon/internal/flag/domain"
	organizationdomain "github.com/beaconhq/beacon/internal/organization/domain"
	projectdomain "github.com/beaconhq/beacon/internal/project/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: strings.ReplaceAll(code, "_", " "),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, evaluation.ErrUnknownSDKKey):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, evaluation.ErrNotReady):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "flag configuration not loaded yet",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, evaluation.ErrMissingUserKey):
		return true
	case isOrganizationValidationError(err),
		isProjectValidationError(err),
		isEnvironmentValidationError(err),
		isFlagValidationError(err),
		isAuditValidationError(err):
		return true
	default:
		return false
	}
}

func isOrganizationValidationError(err error) bool {
	switch {
	case errors.Is(err, organizationdomain.ErrInvalidName),
		errors.Is(err, organizationdomain.ErrInvalidID):
		return true
	default:
		return false
	}
}

func isProjectValidationError(err error) bool {
	switch {
	case errors.Is(err, projectdomain.ErrInvalidOrganization),
		errors.Is(err, projectdomain.ErrInvalidKey),
		errors.Is(err, projectdomain.ErrInvalidName),
		errors.Is(err, projectdomain.ErrInvalidID):
		return true
	default:
		return false
	}
}

func isEnvironmentValidationError(err error) bool {
	switch {
	case errors.Is(err, environmentdomain.ErrInvalidOrganization),
		errors.Is(err, environmentdomain.ErrInvalidProject),
		errors.Is(err, environmentdomain.ErrInvalidKey),
		errors.Is(err, environmentdomain.ErrInvalidName),
		errors.Is(err, environmentdomain.ErrInvalidID):
		return true
	default:
		return false
	}
}

func isFlagValidationError(err error) bool {
	switch {
	case errors.Is(err, flagdomain.ErrInvalidOrganization),
		errors.Is(err, flagdomain.ErrInvalidProject),
		errors.Is(err, flagdomain.ErrInvalidKey),
		errors.Is(err, flagdomain.ErrInvalidName),
		errors.Is(err, flagdomain.ErrInvalidID),
		errors.Is(err, flagdomain.ErrInvalidVariation),
		errors.Is(err, flagdomain.ErrInvalidRollout),
		errors.Is(err, flagdomain.ErrInvalidClauses):
		return true
	default:
		return false
	}
}

func isAuditValidationError(err error) bool {
	switch {
	case errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, auditdomain.ErrInvalidAction),
		errors.Is(err, auditdomain.ErrInvalidOrganization):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, organizationdomain.ErrSlugTaken),
		errors.Is(err, projectdomain.ErrKeyTaken),
		errors.Is(err, environmentdomain.ErrKeyTaken),
		errors.Is(err, flagdomain.ErrKeyTaken):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, organizationdomain.ErrNotFound),
		errors.Is(err, projectdomain.ErrNotFound),
		errors.Is(err, environmentdomain.ErrNotFound),
		errors.Is(err, flagdomain.ErrNotFound),
		errors.Is(err, flagdomain.ErrStateNotFound),
		errors.Is(err, flagdomain.ErrRuleNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_name":
		return "name"
	case "invalid_key":
		return "key"
	case "invalid_id":
		return "id"
	case "invalid_organization":
		return "organization"
	case "invalid_project":
		return "project_id"
	case "invalid_variation":
		return "variation"
	case "invalid_rollout":
		return "rollout"
	case "invalid_clauses":
		return "clauses"
	case "missing_user_key":
		return "user_key"
	case "invalid_page_token":
		return "page_token"
	case "invalid_time_range":
		return "start_at"
	default:
		return "request"
	}
}

// classifyErrorForLog maps a request error to the (type, code) pair the
// request logger records.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error", code
	case status >= http.StatusBadRequest:
		return "client_error", code
	default:
		return "", ""
	}
}
