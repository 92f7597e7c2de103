// Package seed bootstraps a fresh install with a default organization,
// project, and environments so the server is usable out of the box.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	environmentdomain "github.com/beaconhq/beacon/internal/environment/domain"
	flagdomain "github.com/beaconhq/beacon/internal/flag/domain"
	organizationdomain "github.com/beaconhq/beacon/internal/organization/domain"
	projectdomain "github.com/beaconhq/beacon/internal/project/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultOrgName     = "Main"
	defaultOrgSlug     = "main"
	defaultProjectKey  = "default"
	defaultProjectName = "Default Project"
	sampleFlagKey      = "sample-flag"
	sampleFlagName     = "Sample Flag"
)

var defaultEnvironments = []struct {
	Key  string
	Name string
}{
	{Key: "production", Name: "Production"},
	{Key: "staging", Name: "Staging"},
}

// EnsureDefaults seeds the default organization, project, environments,
// and a sample flag. Safe to run on every startup.
func EnsureDefaults(db *gorm.DB, node *snowflake.Node, defaultOrgID int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if node == nil {
		return errors.New("seed id generator is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, err := ensureMainOrgTx(ctx, tx, node, defaultOrgID)
		if err != nil {
			return err
		}

		project, err := ensureDefaultProjectTx(ctx, tx, node, org.ID)
		if err != nil {
			return err
		}

		envs, err := ensureEnvironmentsTx(ctx, tx, node, org.ID, project.ID)
		if err != nil {
			return err
		}

		return ensureSampleFlagTx(ctx, tx, node, org.ID, project.ID, envs)
	})
}

func ensureMainOrgTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, defaultOrgID int64) (*organizationdomain.Organization, error) {
	var org organizationdomain.Organization
	err := tx.WithContext(ctx).Where("slug = ?", defaultOrgSlug).First(&org).Error
	if err == nil {
		return &org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	id := node.Generate()
	if defaultOrgID != 0 {
		id = snowflake.ID(defaultOrgID)
	}

	now := time.Now().UTC()
	org = organizationdomain.Organization{
		ID:        id,
		Name:      defaultOrgName,
		Slug:      defaultOrgSlug,
		IsDefault: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

func ensureDefaultProjectTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, orgID snowflake.ID) (*projectdomain.Project, error) {
	var project projectdomain.Project
	err := tx.WithContext(ctx).
		Where("org_id = ? AND key = ?", orgID.Int64(), defaultProjectKey).
		First(&project).Error
	if err == nil {
		return &project, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	project = projectdomain.Project{
		ID:        node.Generate(),
		OrgID:     orgID.Int64(),
		Key:       defaultProjectKey,
		Name:      defaultProjectName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func ensureEnvironmentsTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, orgID, projectID snowflake.ID) ([]environmentdomain.Environment, error) {
	out := make([]environmentdomain.Environment, 0, len(defaultEnvironments))

	for _, spec := range defaultEnvironments {
		var env environmentdomain.Environment
		err := tx.WithContext(ctx).
			Where("project_id = ? AND key = ?", projectID.Int64(), spec.Key).
			First(&env).Error
		if err == nil {
			out = append(out, env)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		_, clientHash, err := environmentdomain.GenerateSDKKey(environmentdomain.ClientKeyPrefix)
		if err != nil {
			return nil, err
		}
		_, serverHash, err := environmentdomain.GenerateSDKKey(environmentdomain.ServerKeyPrefix)
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		env = environmentdomain.Environment{
			ID:            node.Generate(),
			OrgID:         orgID.Int64(),
			ProjectID:     projectID.Int64(),
			Key:           spec.Key,
			Name:          spec.Name,
			ClientKeyHash: clientHash,
			ServerKeyHash: serverHash,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.WithContext(ctx).Create(&env).Error; err != nil {
			return nil, err
		}
		out = append(out, env)
	}

	return out, nil
}

func ensureSampleFlagTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, orgID, projectID snowflake.ID, envs []environmentdomain.Environment) error {
	var flag flagdomain.Flag
	err := tx.WithContext(ctx).
		Where("project_id = ? AND key = ?", projectID.Int64(), sampleFlagKey).
		First(&flag).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	flag = flagdomain.Flag{
		ID:               node.Generate(),
		OrgID:            orgID.Int64(),
		ProjectID:        projectID.Int64(),
		Key:              sampleFlagKey,
		Name:             sampleFlagName,
		Tags:             []string{"sample"},
		DefaultVariation: datatypes.JSON(`true`),
		OffVariation:     datatypes.JSON(`false`),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := tx.WithContext(ctx).Create(&flag).Error; err != nil {
		return err
	}

	for _, env := range envs {
		state := flagdomain.FlagState{
			ID:               node.Generate(),
			FlagID:           flag.ID.Int64(),
			EnvironmentID:    env.ID.Int64(),
			Enabled:          false,
			DefaultRollout:   flagdomain.FullRollout,
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
