package telemetry

import (
	"context"
	"math/rand"
	"time"

	"github.com/beaconhq/beacon/internal/clock"
	"github.com/beaconhq/beacon/internal/config"
	"github.com/beaconhq/beacon/internal/evaluation"
	"github.com/beaconhq/beacon/internal/observability/metrics"
	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Holder  *config.EngineConfigHolder
	Metrics *metrics.Metrics
}

// Emitter buffers evaluation events in a bounded channel and writes
// them out in batches. When the buffer is full the event is dropped
// and counted; evaluation latency is never traded for telemetry.
type Emitter struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	holder  *config.EngineConfigHolder
	metrics *metrics.Metrics

	events  chan evaluation.TelemetryEvent
	entropy *ulid.MonotonicEntropy
}

func New(p Params) *Emitter {
	cfg := p.Holder.Get()
	return &Emitter{
		db:      p.DB,
		log:     p.Log.Named("telemetry.emitter"),
		genID:   p.GenID,
		clock:   p.Clock,
		holder:  p.Holder,
		metrics: p.Metrics,
		events:  make(chan evaluation.TelemetryEvent, cfg.TelemetryBufferSize),
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// Emit enqueues an event. Never blocks: a full buffer drops the event.
func (e *Emitter) Emit(event evaluation.TelemetryEvent) {
	select {
	case e.events <- event:
	default:
		e.metrics.RecordTelemetryDropped(context.Background(), 1)
	}
}

// run drains the buffer, flushing either when a batch fills or when the
// flush window elapses. Only this goroutine touches the ulid entropy.
func (e *Emitter) run(ctx context.Context) {
	const maxBatch = 500

	batch := make([]Event, 0, maxBatch)
	flushWindow := e.holder.Get().TelemetryFlushWindow
	ticker := time.NewTicker(flushWindow)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := e.db.CreateInBatches(batch, maxBatch).Error; err != nil {
			e.log.Warn("failed to persist evaluation events",
				zap.Int("count", len(batch)),
				zap.Error(err),
			)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			// Final drain of whatever is already buffered.
			for {
				select {
				case event := <-e.events:
					batch = append(batch, e.toRow(event))
					if len(batch) >= maxBatch {
						flush()
					}
				default:
					flush()
					return
				}
			}
		case event := <-e.events:
			batch = append(batch, e.toRow(event))
			if len(batch) >= maxBatch {
				flush()
			}
		case <-ticker.C:
			flush()
			if next := e.holder.Get().TelemetryFlushWindow; next != flushWindow && next > 0 {
				flushWindow = next
				ticker.Reset(flushWindow)
			}
		}
	}
}

func (e *Emitter) toRow(event evaluation.TelemetryEvent) Event {
	now := e.clock.Now()
	row := Event{
		ID:            e.genID.Generate(),
		EventID:       ulid.MustNew(ulid.Timestamp(now), e.entropy).String(),
		EnvironmentID: event.EnvironmentID.Int64(),
		FlagKey:       event.FlagKey,
		UserKey:       event.UserKey,
		Reason:        event.Reason,
		EvaluatedAt:   event.EvaluatedAt,
		CreatedAt:     now,
	}
	if event.RuleID != "" {
		ruleID := event.RuleID
		row.RuleID = &ruleID
	}
	return row
}
