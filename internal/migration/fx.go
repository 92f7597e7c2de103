package migration

import (
	auditdomain "github.com/beaconhq/beacon/internal/audit/domain"
	"github.com/beaconhq/beacon/internal/config"
	environmentdomain "github.com/beaconhq/beacon/internal/environment/domain"
	flagdomain "github.com/beaconhq/beacon/internal/flag/domain"
	organizationdomain "github.com/beaconhq/beacon/internal/organization/domain"
	projectdomain "github.com/beaconhq/beacon/internal/project/domain"
	"github.com/beaconhq/beacon/internal/seed"
	"github.com/beaconhq/beacon/internal/telemetry"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, genID *snowflake.Node) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			if err := autoMigrate(conn); err != nil {
				return err
			}
		}

		return seed.EnsureDefaults(conn, genID, cfg.DefaultOrgID)
	}),
)

// autoMigrate covers the sqlite and mysql paths where the embedded
// postgres migrations do not apply.
func autoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&organizationdomain.Organization{},
		&projectdomain.Project{},
		&environmentdomain.Environment{},
		&flagdomain.Flag{},
		&flagdomain.FlagState{},
		&flagdomain.Rule{},
		&auditdomain.AuditLog{},
		&telemetry.Event{},
	)
}
