package evaluation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/beaconhq/beacon/internal/clock"
	environmentdomain "github.com/beaconhq/beacon/internal/environment/domain"
	"github.com/beaconhq/beacon/internal/observability/metrics"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrNotReady       = errors.New("not_ready")
	ErrUnknownSDKKey  = errors.New("unknown_sdk_key")
	ErrMissingUserKey = errors.New("missing_user_key")
)

// TelemetryEvent is one evaluation outcome handed to the telemetry
// pipeline. Emission never blocks the evaluation path.
type TelemetryEvent struct {
	EnvironmentID snowflake.ID
	FlagKey       string
	UserKey       string
	Reason        string
	RuleID        string
	EvaluatedAt   time.Time
}

// TelemetrySink receives evaluation events asynchronously.
type TelemetrySink interface {
	Emit(event TelemetryEvent)
}

type EvaluateRequest struct {
	UserKey    string            `json:"user_key"`
	Attributes map[string]string `json:"attributes"`
	FlagKeys   []string          `json:"flag_keys"`
}

type EvaluateResponse struct {
	Environment string            `json:"environment"`
	EvaluatedAt time.Time         `json:"evaluated_at"`
	Flags       map[string]Result `json:"flags"`
}

type ServiceParams struct {
	fx.In

	Store     *Store
	Clock     clock.Clock
	Metrics   *metrics.Metrics
	Log       *zap.Logger
	Telemetry TelemetrySink `optional:"true"`
}

// Service is the SDK-facing evaluator. Every call resolves the SDK key
// to exactly one environment, then resolves the requested flags against
// that environment's current snapshot.
type Service struct {
	store     *Store
	clock     clock.Clock
	metrics   *metrics.Metrics
	log       *zap.Logger
	telemetry TelemetrySink
}

func NewService(p ServiceParams) *Service {
	return &Service{
		store:     p.Store,
		clock:     p.Clock,
		metrics:   p.Metrics,
		log:       p.Log.Named("evaluation.service"),
		telemetry: p.Telemetry,
	}
}

func (s *Service) Evaluate(ctx context.Context, sdkKey string, req EvaluateRequest) (*EvaluateResponse, error) {
	start := s.clock.Now()

	sdkKey = strings.TrimSpace(sdkKey)
	if sdkKey == "" {
		return nil, ErrUnknownSDKKey
	}

	userKey := strings.TrimSpace(req.UserKey)
	if userKey == "" {
		return nil, ErrMissingUserKey
	}

	if !s.store.Ready() {
		return nil, ErrNotReady
	}

	snapshot, ok := s.store.ByKeyHash(environmentdomain.HashSDKKey(sdkKey))
	if !ok {
		return nil, ErrUnknownSDKKey
	}

	user := UserContext{Key: userKey, Attributes: req.Attributes}

	keys := req.FlagKeys
	if len(keys) == 0 {
		keys = snapshot.FlagKeys
	}

	results := make(map[string]Result, len(keys))
	for _, key := range keys {
		state := snapshot.States[key]
		result := Resolve(state, user)
		results[key] = result

		if s.telemetry != nil {
			s.telemetry.Emit(TelemetryEvent{
				EnvironmentID: snapshot.EnvironmentID,
				FlagKey:       key,
				UserKey:       userKey,
				Reason:        result.Reason,
				RuleID:        result.RuleID,
				EvaluatedAt:   start,
			})
		}
	}

	s.metrics.RecordEvaluation(ctx, snapshot.EnvironmentKey, len(results), s.clock.Now().Sub(start))

	return &EvaluateResponse{
		Environment: snapshot.EnvironmentKey,
		EvaluatedAt: start,
		Flags:       results,
	}, nil
}
