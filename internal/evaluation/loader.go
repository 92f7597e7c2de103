package evaluation

import (
	"context"
	"sort"
	"time"

	environmentdomain "github.com/beaconhq/beacon/internal/environment/domain"
	flagdomain "github.com/beaconhq/beacon/internal/flag/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Loader materializes a full snapshot set from the database. It reads
// every environment in one pass; flag configuration is small and the
// result is shared by all readers until the next refresh.
type Loader struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewLoader(db *gorm.DB, log *zap.Logger) *Loader {
	return &Loader{db: db, log: log.Named("evaluation.loader")}
}

func (l *Loader) load(ctx context.Context, now time.Time) (*snapshotSet, error) {
	var envs []environmentdomain.Environment
	if err := l.db.WithContext(ctx).Find(&envs).Error; err != nil {
		return nil, err
	}

	var flags []flagdomain.Flag
	if err := l.db.WithContext(ctx).Where("archived = ?", false).Find(&flags).Error; err != nil {
		return nil, err
	}

	var states []flagdomain.FlagState
	if err := l.db.WithContext(ctx).Find(&states).Error; err != nil {
		return nil, err
	}

	var rules []flagdomain.Rule
	if err := l.db.WithContext(ctx).Order("priority ASC, id ASC").Find(&rules).Error; err != nil {
		return nil, err
	}

	flagsByID := make(map[int64]*flagdomain.Flag, len(flags))
	for i := range flags {
		flagsByID[flags[i].ID.Int64()] = &flags[i]
	}

	rulesByState := make(map[int64][]flagdomain.Rule, len(states))
	for _, rule := range rules {
		rulesByState[rule.FlagStateID] = append(rulesByState[rule.FlagStateID], rule)
	}

	set := &snapshotSet{
		builtAt:      now,
		environments: make(map[snowflake.ID]*EnvironmentSnapshot, len(envs)),
		byKeyHash:    make(map[string]*EnvironmentSnapshot, len(envs)*2),
	}

	for i := range envs {
		env := &envs[i]
		snapshot := &EnvironmentSnapshot{
			EnvironmentID:  env.ID,
			EnvironmentKey: env.Key,
			ProjectID:      snowflake.ID(env.ProjectID),
			States:         make(map[string]*FlagState),
		}
		set.environments[env.ID] = snapshot
		set.byKeyHash[env.ClientKeyHash] = snapshot
		set.byKeyHash[env.ServerKeyHash] = snapshot
	}

	for i := range states {
		row := &states[i]
		snapshot, ok := set.environments[snowflake.ID(row.EnvironmentID)]
		if !ok {
			continue
		}
		flag, ok := flagsByID[row.FlagID]
		if !ok {
			// Archived or deleted flag; its states are invisible.
			continue
		}

		state := &FlagState{
			ID:               row.ID,
			FlagKey:          flag.Key,
			Enabled:          row.Enabled,
			DefaultRollout:   row.DefaultRollout,
			DefaultVariation: []byte(row.DefaultVariation),
			OffVariation:     []byte(row.OffVariation),
		}

		for _, stored := range rulesByState[row.ID.Int64()] {
			clauses, err := ParseClauses(stored.Clauses)
			if err != nil {
				// A malformed rule must not poison the flag. Drop the
				// rule, keep the rest of the chain.
				l.log.Warn("dropping malformed rule",
					zap.String("rule_id", stored.ID.String()),
					zap.String("flag", flag.Key),
					zap.String("environment", snapshot.EnvironmentKey),
					zap.Error(err),
				)
				continue
			}
			state.Rules = append(state.Rules, Rule{
				ID:        stored.ID,
				Priority:  stored.Priority,
				Clauses:   clauses,
				Variation: []byte(stored.Variation),
				Rollout:   stored.Rollout,
			})
		}

		snapshot.States[flag.Key] = state
		snapshot.FlagKeys = append(snapshot.FlagKeys, flag.Key)
	}

	for _, snapshot := range set.environments {
		sort.Strings(snapshot.FlagKeys)
	}

	return set, nil
}
