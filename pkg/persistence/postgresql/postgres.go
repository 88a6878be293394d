// Package postgresql provides PostgreSQL persistence for node I/O records
// and approval requests.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/arjanchaudharyy/flowdeck/pkg/persistence"
	"github.com/arjanchaudharyy/flowdeck/pkg/persistence/sqlbase"
	_ "github.com/lib/pq" // postgres driver
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db           *sql.DB
	logger       *slog.Logger
	ioRepo       *NodeIORepository
	approvalRepo *ApprovalRepository
}

// NewPersistence connects to PostgreSQL and runs migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:           database,
		logger:       logger,
		ioRepo:       NewNodeIORepository(database, logger),
		approvalRepo: NewApprovalRepository(database, logger),
	}, nil
}

// NodeIORepository returns the node I/O record repository.
func (p *Persistence) NodeIORepository() persistence.NodeIORepository {
	return p.ioRepo
}

// ApprovalRepository returns the approval request repository.
func (p *Persistence) ApprovalRepository() persistence.ApprovalRepository {
	return p.approvalRepo
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS node_io_records (
				run_id TEXT NOT NULL,
				node_ref TEXT NOT NULL,
				component_id TEXT NOT NULL,
				status TEXT NOT NULL,
				inputs JSONB,
				outputs JSONB,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				duration_ms BIGINT NOT NULL DEFAULT 0,
				error TEXT NOT NULL DEFAULT '',
				error_kind TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (run_id, node_ref)
			);

			CREATE INDEX IF NOT EXISTS idx_node_io_records_run ON node_io_records (run_id);

			CREATE TABLE IF NOT EXISTS approval_requests (
				id TEXT PRIMARY KEY,
				run_id TEXT NOT NULL,
				node_ref TEXT NOT NULL,
				title TEXT NOT NULL DEFAULT '',
				message TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				requested_at TIMESTAMP WITH TIME ZONE NOT NULL,
				expires_at TIMESTAMP WITH TIME ZONE,
				approved BOOLEAN,
				responded_by TEXT NOT NULL DEFAULT '',
				response_note TEXT NOT NULL DEFAULT '',
				responded_at TIMESTAMP WITH TIME ZONE,
				response_data JSONB
			);

			CREATE INDEX IF NOT EXISTS idx_approval_requests_run_status ON approval_requests (run_id, status);
		`,
	}
}
