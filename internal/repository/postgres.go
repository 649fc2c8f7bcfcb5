package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skillswap/backend/internal/domain"
)

//go:embed schema.sql
var schema string

var (
	_ domain.UserRepository    = (*PostgresRepository)(nil)
	_ domain.RequestRepository = (*PostgresRepository)(nil)
)

// Constraint names referenced when translating driver errors
const (
	constraintPendingSwap = "swap_requests_pending_swap_uq"
	constraintNotSelf     = "swap_requests_not_self"
	constraintEmail       = "users_email_key"
	constraintGoogleID    = "users_google_id_key"
)

// PostgresRepository implements domain.UserRepository and domain.RequestRepository using PostgreSQL
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the tables and indexes if they do not exist yet
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// translateError maps constraint violations onto domain errors
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		switch pgErr.ConstraintName {
		case constraintPendingSwap:
			return domain.ErrDuplicatePending
		case constraintEmail, constraintGoogleID:
			return domain.ErrUserAlreadyExists
		}
	case "23514": // check_violation
		if pgErr.ConstraintName == constraintNotSelf {
			return domain.ErrSelfRequest
		}
	case "23503": // foreign_key_violation
		return domain.ErrUserNotFound
	}
	return err
}
