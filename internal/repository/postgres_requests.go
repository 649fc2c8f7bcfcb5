package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/skillswap/backend/internal/domain"
)

const requestColumns = `id, from_user_id, to_user_id, offered_skill, wanted_skill, message, status,
	preferred_time, duration, session_type, notes, response_message, responded_at, completed_at,
	from_user_rating, to_user_rating, from_user_feedback, to_user_feedback, created_at, updated_at`

// CreateRequest inserts a pending request. A second pending request for the
// same swap fails with domain.ErrDuplicatePending.
func (r *PostgresRepository) CreateRequest(ctx context.Context, params domain.CreateRequestParams) (*domain.Request, error) {
	query := `
		INSERT INTO swap_requests (from_user_id, to_user_id, offered_skill, wanted_skill, message,
			preferred_time, duration, session_type, notes, swap_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING ` + requestColumns

	row := r.db.QueryRow(ctx, query,
		params.FromUserID,
		params.ToUserID,
		params.OfferedSkill,
		params.WantedSkill,
		params.Message,
		params.PreferredTime,
		params.Duration,
		string(params.SessionType),
		params.Notes,
		params.SwapKey,
		params.CreatedAt,
	)

	req, err := scanRequest(row)
	if err != nil {
		return nil, translateError(err)
	}
	return req, nil
}

// GetRequestByID retrieves a request by ID
func (r *PostgresRepository) GetRequestByID(ctx context.Context, id uuid.UUID) (*domain.Request, error) {
	row := r.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM swap_requests WHERE id = $1`, id)
	return scanRequest(row)
}

// HasPendingSwap reports whether a pending request exists for the swap key
func (r *PostgresRepository) HasPendingSwap(ctx context.Context, swapKey string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM swap_requests WHERE swap_key = $1 AND status = 'pending')`
	var exists bool
	err := r.db.QueryRow(ctx, query, swapKey).Scan(&exists)
	return exists, err
}

// TransitionRequest moves a request out of params.From. It fails with
// domain.ErrInvalidState when the stored status has already changed.
func (r *PostgresRepository) TransitionRequest(ctx context.Context, params domain.TransitionParams) (*domain.Request, error) {
	query := `
		UPDATE swap_requests SET
			status           = $3,
			response_message = COALESCE($4, response_message),
			responded_at     = COALESCE($5, responded_at),
			completed_at     = COALESCE($6, completed_at),
			updated_at       = $7
		WHERE id = $1 AND status = $2
		RETURNING ` + requestColumns

	row := r.db.QueryRow(ctx, query,
		params.RequestID,
		string(params.From),
		string(params.To),
		params.ResponseMessage,
		params.RespondedAt,
		params.CompletedAt,
		params.UpdatedAt,
	)

	req, err := scanRequest(row)
	if errors.Is(err, domain.ErrRequestNotFound) {
		return nil, domain.ErrInvalidState
	}
	return req, err
}

// DeleteRequest removes a request sent by fromUserID while it is still in the expected status
func (r *PostgresRepository) DeleteRequest(ctx context.Context, id, fromUserID uuid.UUID, expected domain.RequestStatus) error {
	query := `DELETE FROM swap_requests WHERE id = $1 AND from_user_id = $2 AND status = $3`
	tag, err := r.db.Exec(ctx, query, id, fromUserID, string(expected))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidState
	}
	return nil
}

// RecordRating stores one party's rating and updates the rated user's aggregate in one transaction
func (r *PostgresRepository) RecordRating(ctx context.Context, params domain.RecordRatingParams) (*domain.Request, error) {
	ratingCol, feedbackCol := "to_user_rating", "to_user_feedback"
	if params.ByFromUser {
		ratingCol, feedbackCol = "from_user_rating", "from_user_feedback"
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		UPDATE swap_requests SET %[1]s = $2, %[2]s = $3, updated_at = $4
		WHERE id = $1 AND status = 'completed' AND %[1]s IS NULL
		RETURNING `+requestColumns, ratingCol, feedbackCol)

	req, err := scanRequest(tx.QueryRow(ctx, query, params.RequestID, params.Score, params.Feedback, params.UpdatedAt))
	if err != nil {
		if errors.Is(err, domain.ErrRequestNotFound) {
			return nil, domain.ErrAlreadyRated
		}
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET
			rating       = ROUND(((rating * rating_count + $2) / (rating_count + 1))::numeric, 1)::float8,
			rating_count = rating_count + 1,
			updated_at   = $3
		WHERE id = $1`,
		params.RatedUserID, float64(params.Score), params.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return req, nil
}

// ListRequests returns a user's sent and received requests, newest first
func (r *PostgresRepository) ListRequests(ctx context.Context, params domain.ListRequestsParams) ([]*domain.Request, error) {
	var conds []string
	switch params.Direction {
	case domain.DirectionIncoming:
		conds = append(conds, "to_user_id = $1")
	case domain.DirectionOutgoing:
		conds = append(conds, "from_user_id = $1")
	default:
		conds = append(conds, "(from_user_id = $1 OR to_user_id = $1)")
	}
	args := []any{params.UserID, limitArg(params.Limit), params.Offset}
	if params.Status != "" {
		args = append(args, string(params.Status))
		conds = append(conds, "status = $4")
	}

	query := `SELECT ` + requestColumns + ` FROM swap_requests WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reqs := make([]*domain.Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// limitArg turns a non-positive limit into NULL, which Postgres treats as LIMIT ALL
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func scanRequest(row pgx.Row) (*domain.Request, error) {
	var req domain.Request
	var status, sessionType string
	var fromRating, toRating *int16
	err := row.Scan(
		&req.ID,
		&req.FromUserID,
		&req.ToUserID,
		&req.OfferedSkill,
		&req.WantedSkill,
		&req.Message,
		&status,
		&req.PreferredTime,
		&req.Duration,
		&sessionType,
		&req.Notes,
		&req.ResponseMessage,
		&req.RespondedAt,
		&req.CompletedAt,
		&fromRating,
		&toRating,
		&req.Feedback.FromUserFeedback,
		&req.Feedback.ToUserFeedback,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, err
	}

	req.Status = domain.RequestStatus(status)
	req.SessionType = domain.SessionType(sessionType)
	req.Rating.FromUserRating = intPtr(fromRating)
	req.Rating.ToUserRating = intPtr(toRating)
	return &req, nil
}

func intPtr(v *int16) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}
