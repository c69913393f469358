package postgres

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// pendingTerminationIndex keeps at most one pending termination per contract.
const pendingTerminationIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_termination_requests_pending
ON termination_requests (contract_id) WHERE status = 'pending'`

// Connect opens and validates a Postgres-backed GORM connection pool.
func Connect(ctx context.Context, databaseURL string, maxConns int32) (*gorm.DB, error) {
	logger := slog.Default().With("module", "postgres", "layer", "adapter")
	logger.InfoContext(ctx, "postgres connect started", "operation", "connect", "outcome", "start")
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}
	if maxConns > 0 {
		sqlDB.SetMaxOpenConns(int(maxConns))
		sqlDB.SetMaxIdleConns(int(maxConns) / 2)
	}
	sqlDB.SetConnMaxIdleTime(15 * time.Minute)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.InfoContext(ctx, "postgres connect completed", "operation", "connect", "outcome", "success")
	return db, nil
}

// ConnectSQLite opens a single-node SQLite database for local runs and tests.
// The schema is created with AutoMigrate rather than the Postgres migrations.
func ConnectSQLite(ctx context.Context, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}
	// SQLite allows one writer; serializing connections keeps transactions from
	// failing with SQLITE_BUSY under concurrent requests.
	sqlDB.SetMaxOpenConns(1)
	if err := AutoMigrate(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	slog.Default().InfoContext(ctx, "sqlite connect completed",
		"module", "postgres",
		"layer", "adapter",
		"operation", "connect_sqlite",
		"outcome", "success",
	)
	return db, nil
}

// AutoMigrate derives the schema from the models. Postgres deployments use RunMigrations.
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&trackingLinkModel{},
		&clickEventModel{},
		&conversionEventModel{},
		&unattributedConversionModel{},
		&settlementRecordModel{},
		&settlementTaskModel{},
		&payoutInstructionModel{},
		&terminationRequestModel{},
		&terminationAuditModel{},
		&referralOutboxModel{},
		&programTermsModel{},
		&creatorAccountModel{},
		&creatorContractModel{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.WithContext(ctx).Exec(pendingTerminationIndex).Error; err != nil {
		return fmt.Errorf("create pending termination index: %w", err)
	}
	return nil
}

// RunMigrations applies embedded SQL migrations in lexical order.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	// Migration files hold several statements, which prepared statements reject.
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("gorm sql db: %w", err)
	}
	logger := slog.Default().With("module", "postgres", "layer", "adapter")
	logger.InfoContext(ctx, "postgres migrations started",
		"operation", "run_migrations",
		"outcome", "start",
		"migration_count", len(names),
	)

	for _, name := range names {
		raw, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := sqlDB.ExecContext(ctx, string(raw)); err != nil {
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
		logger.InfoContext(ctx, "migration applied",
			"operation", "apply_migration",
			"outcome", "success",
			"migration", name,
		)
	}
	logger.InfoContext(ctx, "postgres migrations completed",
		"operation", "run_migrations",
		"outcome", "success",
		"migration_count", len(names),
	)
	return nil
}
