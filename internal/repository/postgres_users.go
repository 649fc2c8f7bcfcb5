package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/skillswap/backend/internal/domain"
)

const userColumns = `id, name, email, google_id, bio, location, avatar_url, skills_offered, skills_wanted,
	rating, rating_count, availability, profile_visibility, is_active, device_token, last_login_at, created_at, updated_at`

// CreateUser creates a new user
func (r *PostgresRepository) CreateUser(ctx context.Context, params domain.CreateUserParams) (*domain.User, error) {
	query := `
		INSERT INTO users (name, email, password_hash, google_id, avatar_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns

	row := r.db.QueryRow(ctx, query,
		params.Name,
		strings.ToLower(params.Email),
		params.PasswordHash,
		params.GoogleID,
		params.AvatarURL,
	)

	user, err := scanUser(row)
	if err != nil {
		return nil, translateError(err)
	}
	return user, nil
}

// GetUserByID retrieves a user by ID
func (r *PostgresRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by email
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email))
	return scanUser(row)
}

// GetUserByGoogleID retrieves a user by Google ID
func (r *PostgresRepository) GetUserByGoogleID(ctx context.Context, googleID string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE google_id = $1`, googleID)
	return scanUser(row)
}

// GetUserWithPassword retrieves a user with password hash for verification
func (r *PostgresRepository) GetUserWithPassword(ctx context.Context, email string) (*domain.User, string, error) {
	query := `SELECT ` + userColumns + `, password_hash FROM users WHERE email = $1`

	var passwordHash *string
	user, err := scanUserWith(r.db.QueryRow(ctx, query, strings.ToLower(email)), &passwordHash)
	if err != nil {
		return nil, "", err
	}

	hash := ""
	if passwordHash != nil {
		hash = *passwordHash
	}
	return user, hash, nil
}

// GetUserSummaries loads the listing view of several users at once
func (r *PostgresRepository) GetUserSummaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.UserSummary, error) {
	out := make(map[uuid.UUID]*domain.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out[user.ID] = user.Summary()
	}
	return out, rows.Err()
}

// LinkGoogleAccount links a Google account to an existing user
func (r *PostgresRepository) LinkGoogleAccount(ctx context.Context, userID uuid.UUID, googleID string) (*domain.User, error) {
	query := `
		UPDATE users SET google_id = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRow(ctx, query, userID, googleID))
	if err != nil {
		return nil, translateError(err)
	}
	return user, nil
}

// UpdateProfile applies the non-nil fields of params
func (r *PostgresRepository) UpdateProfile(ctx context.Context, userID uuid.UUID, params domain.UpdateProfileParams) (*domain.User, error) {
	query := `
		UPDATE users SET
			name               = COALESCE($2, name),
			bio                = COALESCE($3, bio),
			location           = COALESCE($4, location),
			skills_offered     = COALESCE($5::text[], skills_offered),
			skills_wanted      = COALESCE($6::text[], skills_wanted),
			availability       = COALESCE($7, availability),
			profile_visibility = COALESCE($8, profile_visibility),
			updated_at         = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	var skillsOffered, skillsWanted []string
	if params.SkillsOffered != nil {
		skillsOffered = nonNil(*params.SkillsOffered)
	}
	if params.SkillsWanted != nil {
		skillsWanted = nonNil(*params.SkillsWanted)
	}

	row := r.db.QueryRow(ctx, query,
		userID,
		params.Name,
		params.Bio,
		params.Location,
		skillsOffered,
		skillsWanted,
		(*string)(params.Availability),
		(*string)(params.ProfileVisibility),
	)
	return scanUser(row)
}

// UpdateAvatar points the user's avatar at a new URL
func (r *PostgresRepository) UpdateAvatar(ctx context.Context, userID uuid.UUID, avatarURL string) (*domain.User, error) {
	query := `UPDATE users SET avatar_url = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(ctx, query, userID, avatarURL))
}

// UpdateDeviceToken stores the push token; an empty token clears it
func (r *PostgresRepository) UpdateDeviceToken(ctx context.Context, userID uuid.UUID, token string) error {
	var value *string
	if token != "" {
		value = &token
	}
	tag, err := r.db.Exec(ctx, `UPDATE users SET device_token = $2 WHERE id = $1`, userID, value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// TouchLastLogin records a successful sign-in
func (r *PostgresRepository) TouchLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, userID, at)
	return err
}

// SearchUsers lists active public profiles with the total match count
func (r *PostgresRepository) SearchUsers(ctx context.Context, params domain.SearchUsersParams) ([]*domain.User, int, error) {
	conds := []string{"is_active = TRUE", "profile_visibility = 'public'"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.Query != "" {
		p := arg(likePattern(params.Query))
		conds = append(conds, fmt.Sprintf(`(name ILIKE %[1]s OR location ILIKE %[1]s
			OR EXISTS (SELECT 1 FROM unnest(skills_offered || skills_wanted) s WHERE s ILIKE %[1]s))`, p))
	}
	if params.Availability != "" {
		conds = append(conds, "availability = "+arg(string(params.Availability)))
	}
	if params.MinRating > 0 {
		conds = append(conds, "rating >= "+arg(params.MinRating))
	}
	if params.Skill != "" {
		p := arg(likePattern(params.Skill))
		conds = append(conds, fmt.Sprintf("EXISTS (SELECT 1 FROM unnest(skills_offered) s WHERE s ILIKE %s)", p))
	}

	query := `SELECT ` + userColumns + `, COUNT(*) OVER() FROM users WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY rating DESC, created_at DESC LIMIT ` + arg(params.Limit) + ` OFFSET ` + arg(params.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	total := 0
	for rows.Next() {
		user, err := scanUserWith(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// An offset past the end returns no rows and so no window count.
	if len(users) == 0 && params.Offset > 0 {
		countQuery := `SELECT COUNT(*) FROM users WHERE ` + strings.Join(conds, " AND ")
		if err := r.db.QueryRow(ctx, countQuery, args[:len(args)-2]...).Scan(&total); err != nil {
			return nil, 0, err
		}
	}
	return users, total, nil
}

// ListSkills returns the distinct offered and wanted skills of active public users in byte order
func (r *PostgresRepository) ListSkills(ctx context.Context) ([]string, []string, error) {
	offered, err := r.distinctSkills(ctx, "skills_offered")
	if err != nil {
		return nil, nil, err
	}
	wanted, err := r.distinctSkills(ctx, "skills_wanted")
	if err != nil {
		return nil, nil, err
	}
	return offered, wanted, nil
}

func (r *PostgresRepository) distinctSkills(ctx context.Context, column string) ([]string, error) {
	query := `SELECT DISTINCT skill COLLATE "C" AS skill
		FROM users, unnest(` + column + `) AS skill
		WHERE is_active = TRUE AND profile_visibility = 'public'
		ORDER BY skill`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	skills, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", column, err)
	}
	return nonNil(skills), nil
}

// likePattern builds a substring ILIKE pattern with wildcards in s escaped
func likePattern(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(s) + "%"
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func scanUser(row pgx.Row) (*domain.User, error) {
	return scanUserWith(row)
}

// scanUserWith scans userColumns followed by any extra destinations
func scanUserWith(row pgx.Row, extra ...any) (*domain.User, error) {
	var user domain.User
	var availability, visibility string
	dest := []any{
		&user.ID,
		&user.Name,
		&user.Email,
		&user.GoogleID,
		&user.Bio,
		&user.Location,
		&user.AvatarURL,
		&user.SkillsOffered,
		&user.SkillsWanted,
		&user.Rating,
		&user.RatingCount,
		&availability,
		&visibility,
		&user.IsActive,
		&user.DeviceToken,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	user.Availability = domain.Availability(availability)
	user.ProfileVisibility = domain.ProfileVisibility(visibility)
	return &user, nil
}
