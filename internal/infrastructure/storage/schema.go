package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"InterviewNotifier/internal/ports"
)

// Columns the dispatch pipeline writes. Provisioning adds any that are
// missing so normal-path lookups never run against an absent field.
var outcomeColumns = []struct {
	name string
	ddl  string
}{
	{"idempotency_key", "TEXT NOT NULL DEFAULT ''"},
	{"company", "TEXT NOT NULL DEFAULT ''"},
	{"interviewer", "TEXT NOT NULL DEFAULT ''"},
	{"interviewer_email", "TEXT NOT NULL DEFAULT ''"},
	{"candidate", "TEXT NOT NULL DEFAULT ''"},
	{"candidate_email", "TEXT NOT NULL DEFAULT ''"},
	{"added_on_raw", "TEXT NOT NULL DEFAULT ''"},
	{"added_on", "TIMESTAMPTZ"},
	{"round_name", "TEXT NOT NULL DEFAULT ''"},
	{"round_link", "TEXT NOT NULL DEFAULT ''"},
	{"status", "TEXT NOT NULL DEFAULT ''"},
	{"failure_reason", "TEXT NOT NULL DEFAULT ''"},
	{"sent_at", "TIMESTAMPTZ"},
	{"tat_seconds", "BIGINT"},
	{"processed", "BOOLEAN NOT NULL DEFAULT FALSE"},
}

// Provisioner ensures the outcomes table and every written column exist.
type Provisioner struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ ports.SchemaProvisioner = (*Provisioner)(nil)

// NewProvisioner wires a sql.DB implementation.
func NewProvisioner(db *sql.DB, logger *slog.Logger) *Provisioner {
	return &Provisioner{db: db, logger: logger}
}

// EnsureSchema creates the table and backfills columns. Individual column
// failures are logged and tolerated; failing to establish the table at all
// is returned and must abort startup.
func (p *Provisioner) EnsureSchema(ctx context.Context) error {
	if p.db == nil {
		return fmt.Errorf("schema provisioner is not connected")
	}

	createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        id BIGSERIAL PRIMARY KEY,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`, outcomesTable)

	if _, err := p.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create outcomes table: %w", err)
	}

	failed := 0
	for _, col := range outcomeColumns {
		ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s", outcomesTable, col.name, col.ddl)
		if _, err := p.db.ExecContext(ctx, ddl); err != nil {
			failed++
			p.warn("provision column failed", "column", col.name, "error", err)
		}
	}
	if failed == len(outcomeColumns) {
		return fmt.Errorf("provisioning failed for all %d columns", failed)
	}

	index := fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS %s_idempotency_key_idx ON %s (idempotency_key)",
		outcomesTable, outcomesTable)
	if _, err := p.db.ExecContext(ctx, index); err != nil {
		p.warn("provision idempotency index failed", "error", err)
	}

	return nil
}

func (p *Provisioner) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
