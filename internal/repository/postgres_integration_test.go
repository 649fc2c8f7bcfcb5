package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/skillswap/backend/internal/domain"
)

// SKILLSWAP_TEST_DATABASE_URL points the suite at an existing database instead of a container
const testDatabaseEnv = "SKILLSWAP_TEST_DATABASE_URL"

var (
	pgOnce      sync.Once
	pgURL       string
	pgErr       error
	pgContainer testcontainers.Container
)

// startPostgres runs one postgres:16 container for the whole package
func startPostgres(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "skillswap",
			"POSTGRES_PASSWORD": "skillswap",
			"POSTGRES_DB":       "skillswap_test",
		},
		// The server restarts once after initdb
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start postgres container: %w", err)
	}
	pgContainer = container

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get postgres host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", fmt.Errorf("failed to get postgres port: %w", err)
	}

	return fmt.Sprintf("postgres://skillswap:skillswap@%s:%s/skillswap_test?sslmode=disable", host, port.Port()), nil
}

func TestMain(m *testing.M) {
	code := m.Run()
	if pgContainer != nil {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "failed to terminate postgres container: %v\n", err)
		}
	}
	os.Exit(code)
}

// newPostgresRepo returns a migrated repository over empty tables
func newPostgresRepo(t *testing.T) (*PostgresRepository, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping Postgres integration test in short mode")
	}

	pgOnce.Do(func() {
		if url := os.Getenv(testDatabaseEnv); url != "" {
			pgURL = url
			return
		}
		pgURL, pgErr = startPostgres(context.Background())
	})
	if pgErr != nil {
		t.Skipf("Postgres unavailable (set %s or start Docker): %v", testDatabaseEnv, pgErr)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, pgURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := NewPostgresRepository(pool)
	require.NoError(t, repo.Migrate(ctx))
	_, err = pool.Exec(ctx, `TRUNCATE swap_requests, users`)
	require.NoError(t, err)
	return repo, pool
}

func pgUser(t *testing.T, repo *PostgresRepository, name string) *domain.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), domain.CreateUserParams{
		Name:  name,
		Email: fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
	})
	require.NoError(t, err)
	return u
}

func pgRequest(t *testing.T, repo *PostgresRepository, from, to uuid.UUID, offered, wanted string, at time.Time) *domain.Request {
	t.Helper()
	req, err := repo.CreateRequest(context.Background(), domain.CreateRequestParams{
		FromUserID:   from,
		ToUserID:     to,
		OfferedSkill: offered,
		WantedSkill:  wanted,
		Message:      "let us swap skills",
		SessionType:  domain.SessionTypeFlexible,
		SwapKey:      domain.SwapKey(from, to, offered, wanted),
		CreatedAt:    at,
	})
	require.NoError(t, err)
	return req
}

func pgComplete(t *testing.T, repo *PostgresRepository, req *domain.Request) {
	t.Helper()
	for _, step := range []struct{ from, to domain.RequestStatus }{
		{domain.RequestStatusPending, domain.RequestStatusAccepted},
		{domain.RequestStatusAccepted, domain.RequestStatusCompleted},
	} {
		_, err := repo.TransitionRequest(context.Background(), domain.TransitionParams{
			RequestID: req.ID, From: step.from, To: step.to, UpdatedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
	}
}

func TestPostgresTransitionIsConditional(t *testing.T) {
	repo, _ := newPostgresRepo(t)
	ctx := context.Background()
	a := pgUser(t, repo, "ada")
	b := pgUser(t, repo, "bob")
	req := pgRequest(t, repo, a.ID, b.ID, "Go", "Rust", time.Now().UTC())

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(to domain.RequestStatus) {
			defer wg.Done()
			_, err := repo.TransitionRequest(ctx, domain.TransitionParams{
				RequestID: req.ID,
				From:      domain.RequestStatusPending,
				To:        to,
				UpdatedAt: time.Now().UTC(),
			})
			results <- err
		}([]domain.RequestStatus{domain.RequestStatusAccepted, domain.RequestStatusRejected}[i%2])
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	}
	assert.Equal(t, 1, succeeded)

	stored, err := repo.GetRequestByID(ctx, req.ID)
	require.NoError(t, err)
	assert.NotEqual(t, domain.RequestStatusPending, stored.Status)

	_, err = repo.TransitionRequest(ctx, domain.TransitionParams{
		RequestID: uuid.New(),
		From:      domain.RequestStatusPending,
		To:        domain.RequestStatusAccepted,
		UpdatedAt: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestPostgresMirroredPendingSwapIsDuplicate(t *testing.T) {
	repo, _ := newPostgresRepo(t)
	ctx := context.Background()
	a := pgUser(t, repo, "ada")
	b := pgUser(t, repo, "bob")
	req := pgRequest(t, repo, a.ID, b.ID, "Go", "Rust", time.Now().UTC())

	mirrored := domain.CreateRequestParams{
		FromUserID:   b.ID,
		ToUserID:     a.ID,
		OfferedSkill: "Rust",
		WantedSkill:  "Go",
		Message:      "the other way round",
		SessionType:  domain.SessionTypeFlexible,
		SwapKey:      domain.SwapKey(b.ID, a.ID, "Rust", "Go"),
		CreatedAt:    time.Now().UTC(),
	}
	_, err := repo.CreateRequest(ctx, mirrored)
	assert.ErrorIs(t, err, domain.ErrDuplicatePending)

	exists, err := repo.HasPendingSwap(ctx, mirrored.SwapKey)
	require.NoError(t, err)
	assert.True(t, exists)

	// Once the first request leaves pending the same swap may be proposed again
	_, err = repo.TransitionRequest(ctx, domain.TransitionParams{
		RequestID: req.ID,
		From:      domain.RequestStatusPending,
		To:        domain.RequestStatusRejected,
		UpdatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	_, err = repo.CreateRequest(ctx, mirrored)
	assert.NoError(t, err)

	_, err = repo.CreateRequest(ctx, domain.CreateRequestParams{
		FromUserID:   a.ID,
		ToUserID:     a.ID,
		OfferedSkill: "Go",
		WantedSkill:  "Chess",
		SessionType:  domain.SessionTypeFlexible,
		SwapKey:      domain.SwapKey(a.ID, a.ID, "Go", "Chess"),
		CreatedAt:    time.Now().UTC(),
	})
	assert.ErrorIs(t, err, domain.ErrSelfRequest)
}

func TestPostgresDeleteRequiresSenderAndStatus(t *testing.T) {
	repo, _ := newPostgresRepo(t)
	ctx := context.Background()
	a := pgUser(t, repo, "ada")
	b := pgUser(t, repo, "bob")
	req := pgRequest(t, repo, a.ID, b.ID, "Go", "Rust", time.Now().UTC())

	assert.ErrorIs(t, repo.DeleteRequest(ctx, req.ID, b.ID, domain.RequestStatusPending), domain.ErrInvalidState)
	assert.ErrorIs(t, repo.DeleteRequest(ctx, req.ID, a.ID, domain.RequestStatusAccepted), domain.ErrInvalidState)

	_, err := repo.TransitionRequest(ctx, domain.TransitionParams{
		RequestID: req.ID,
		From:      domain.RequestStatusPending,
		To:        domain.RequestStatusAccepted,
		UpdatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.ErrorIs(t, repo.DeleteRequest(ctx, req.ID, a.ID, domain.RequestStatusPending), domain.ErrInvalidState)

	other := pgRequest(t, repo, a.ID, b.ID, "Chess", "Baking", time.Now().UTC())
	require.NoError(t, repo.DeleteRequest(ctx, other.ID, a.ID, domain.RequestStatusPending))
	_, err = repo.GetRequestByID(ctx, other.ID)
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)
}

func TestPostgresRecordRatingOncePerParty(t *testing.T) {
	repo, _ := newPostgresRepo(t)
	ctx := context.Background()
	a := pgUser(t, repo, "ada")
	b := pgUser(t, repo, "bob")

	rate := func(req *domain.Request, score int) (*domain.Request, error) {
		return repo.RecordRating(ctx, domain.RecordRatingParams{
			RequestID: req.ID, ByFromUser: true, RatedUserID: b.ID, Score: score, Feedback: "great", UpdatedAt: time.Now().UTC(),
		})
	}

	first := pgRequest(t, repo, a.ID, b.ID, "Go", "Rust", time.Now().UTC())
	_, err := rate(first, 4)
	assert.ErrorIs(t, err, domain.ErrAlreadyRated, "pending requests cannot be rated")

	pgComplete(t, repo, first)
	rated, err := rate(first, 4)
	require.NoError(t, err)
	require.NotNil(t, rated.Rating.FromUserRating)
	assert.Equal(t, 4, *rated.Rating.FromUserRating)
	assert.Equal(t, "great", rated.Feedback.FromUserFeedback)

	_, err = rate(first, 5)
	assert.ErrorIs(t, err, domain.ErrAlreadyRated)

	second := pgRequest(t, repo, a.ID, b.ID, "Chess", "Baking", time.Now().UTC())
	pgComplete(t, repo, second)
	_, err = rate(second, 5)
	require.NoError(t, err)

	bob, err := repo.GetUserByID(ctx, b.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.5, bob.Rating, 0.001)
	assert.Equal(t, 2, bob.RatingCount)
}

func TestPostgresListRequestsFilters(t *testing.T) {
	repo, _ := newPostgresRepo(t)
	ctx := context.Background()
	a := pgUser(t, repo, "ada")
	b := pgUser(t, repo, "bob")
	c := pgUser(t, repo, "cy")

	base := time.Now().UTC().Truncate(time.Millisecond)
	ab := pgRequest(t, repo, a.ID, b.ID, "Go", "Rust", base)
	ca := pgRequest(t, repo, c.ID, a.ID, "Chess", "Go", base.Add(time.Second))
	pgRequest(t, repo, b.ID, c.ID, "Rust", "Chess", base.Add(2*time.Second))

	_, err := repo.TransitionRequest(ctx, domain.TransitionParams{
		RequestID: ab.ID,
		From:      domain.RequestStatusPending,
		To:        domain.RequestStatusAccepted,
		UpdatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	ids := func(params domain.ListRequestsParams) []uuid.UUID {
		t.Helper()
		params.UserID = a.ID
		list, err := repo.ListRequests(ctx, params)
		require.NoError(t, err)
		out := make([]uuid.UUID, 0, len(list))
		for _, r := range list {
			out = append(out, r.ID)
		}
		return out
	}

	assert.Equal(t, []uuid.UUID{ca.ID, ab.ID}, ids(domain.ListRequestsParams{}))
	assert.Equal(t, []uuid.UUID{ab.ID}, ids(domain.ListRequestsParams{Direction: domain.DirectionOutgoing}))
	assert.Equal(t, []uuid.UUID{ca.ID}, ids(domain.ListRequestsParams{Direction: domain.DirectionIncoming}))
	assert.Equal(t, []uuid.UUID{ab.ID}, ids(domain.ListRequestsParams{Status: domain.RequestStatusAccepted}))
	assert.Empty(t, ids(domain.ListRequestsParams{Direction: domain.DirectionIncoming, Status: domain.RequestStatusAccepted}))
	assert.Equal(t, []uuid.UUID{ca.ID}, ids(domain.ListRequestsParams{Limit: 1}))
	assert.Equal(t, []uuid.UUID{ab.ID}, ids(domain.ListRequestsParams{Limit: 1, Offset: 1}))
}

func TestPostgresListRequestsWithoutLimitReturnsAll(t *testing.T) {
	repo, _ := newPostgresRepo(t)
	ctx := context.Background()
	a := pgUser(t, repo, "ada")
	b := pgUser(t, repo, "bob")

	base := time.Now().UTC()
	for i := 0; i < 130; i++ {
		pgRequest(t, repo, a.ID, b.ID, fmt.Sprintf("skill-%d", i), "Rust", base.Add(time.Duration(i)*time.Millisecond))
	}

	list, err := repo.ListRequests(ctx, domain.ListRequestsParams{UserID: b.ID, Status: domain.RequestStatusPending})
	require.NoError(t, err)
	assert.Len(t, list, 130)
}

func TestPostgresDirectoryHidesInactiveAndPrivate(t *testing.T) {
	repo, pool := newPostgresRepo(t)
	ctx := context.Background()
	a := pgUser(t, repo, "ada")
	b := pgUser(t, repo, "bob")
	c := pgUser(t, repo, "cy")

	set := func(id uuid.UUID, offered, wanted []string) {
		_, err := repo.UpdateProfile(ctx, id, domain.UpdateProfileParams{SkillsOffered: &offered, SkillsWanted: &wanted})
		require.NoError(t, err)
	}
	set(a.ID, []string{"Go", "Chess"}, []string{"rust"})
	set(b.ID, []string{"Go", "Hidden"}, []string{"Baking"})
	set(c.ID, []string{"Inactive"}, []string{"Inactive"})

	private := domain.VisibilityPrivate
	_, err := repo.UpdateProfile(ctx, b.ID, domain.UpdateProfileParams{ProfileVisibility: &private})
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `UPDATE users SET is_active = FALSE WHERE id = $1`, c.ID)
	require.NoError(t, err)

	offered, wanted, err := repo.ListSkills(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Chess", "Go"}, offered)
	assert.Equal(t, []string{"rust"}, wanted)

	users, total, err := repo.SearchUsers(ctx, domain.SearchUsersParams{Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, a.ID, users[0].ID)
}
