package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"InterviewNotifier/internal/domain"
	"InterviewNotifier/internal/ports"
)

const outcomesTable = "round_outcomes"

// Postgres error codes treated as "lookup target absent" rather than fatal.
const (
	pqUndefinedTable  = "42P01"
	pqUndefinedColumn = "42703"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository persists dispatch outcome records into Postgres.
type PostgresRepository struct {
	db *sql.DB
}

var _ ports.OutcomeStore = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindByKey looks up an existing record id by idempotency key. A missing
// table or column reads as not found so a fresh store never fails lookups.
func (r *PostgresRepository) FindByKey(ctx context.Context, key string) (string, bool, error) {
	if r.db == nil {
		return "", false, nil
	}

	query, args, err := psql.
		Select("id").
		From(outcomesTable).
		Where(sq.Eq{"idempotency_key": key}).
		Limit(1).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build lookup: %w", err)
	}

	var id int64
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case isSchemaAbsence(err):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("query outcome by key: %w", err)
	}

	return strconv.FormatInt(id, 10), true, nil
}

// Create inserts a fresh outcome record and returns its id.
func (r *PostgresRepository) Create(ctx context.Context, rec domain.OutcomeRecord) (string, error) {
	if r.db == nil {
		return "", fmt.Errorf("outcome store is not connected")
	}

	query, args, err := psql.
		Insert(outcomesTable).
		SetMap(recordColumns(rec)).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build insert: %w", err)
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return "", fmt.Errorf("insert outcome: %w", err)
	}

	return strconv.FormatInt(id, 10), nil
}

// Update rewrites an existing record in place, bumping updated_at.
func (r *PostgresRepository) Update(ctx context.Context, id string, rec domain.OutcomeRecord) error {
	if r.db == nil {
		return fmt.Errorf("outcome store is not connected")
	}

	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("record id %q: %w", id, err)
	}

	columns := recordColumns(rec)
	columns["updated_at"] = sq.Expr("NOW()")

	query, args, err := psql.
		Update(outcomesTable).
		SetMap(columns).
		Where(sq.Eq{"id": numericID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update outcome %s: %w", id, err)
	}

	return nil
}

func recordColumns(rec domain.OutcomeRecord) map[string]interface{} {
	var sentAt interface{}
	if rec.SentAt != nil {
		sentAt = *rec.SentAt
	}
	var tat interface{}
	if rec.TATSeconds != nil {
		tat = *rec.TATSeconds
	}

	return map[string]interface{}{
		"idempotency_key":   rec.Key,
		"company":           rec.Company,
		"interviewer":       rec.Interviewer,
		"interviewer_email": rec.InterviewerEmail,
		"candidate":         rec.Candidate,
		"candidate_email":   rec.CandidateEmail,
		"added_on_raw":      rec.AddedOnRaw,
		"added_on":          rec.AddedOn,
		"round_name":        rec.RoundName,
		"round_link":        rec.RoundLink,
		"status":            string(rec.Status),
		"failure_reason":    rec.FailureReason,
		"sent_at":           sentAt,
		"tat_seconds":       tat,
		"processed":         rec.Processed,
	}
}

func isSchemaAbsence(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqUndefinedTable || pqErr.Code == pqUndefinedColumn
}
