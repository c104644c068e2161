package users_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	users "github.com/goliatone/go-users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// plainHasher keeps tests fast, bcrypt is covered in bcrypt_test.go.
type plainHasher struct{}

func (plainHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", users.ErrNoEmptyString
	}
	return "hashed:" + password, nil
}

func (plainHasher) ComparePasswordAndHash(password, hash string) error {
	if "hashed:"+password != hash {
		return users.ErrMismatchedHashAndPassword
	}
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []users.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event users.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) all() []users.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]users.ActivityEvent(nil), s.events...)
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := users.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	stmts, err := users.SchemaStatements(users.DialectSQLite)
	require.NoError(t, err)
	for _, stmt := range stmts {
		_, err := db.ExecContext(context.Background(), stmt)
		require.NoError(t, err, stmt)
	}

	return db
}

func newTestManager(t *testing.T) (users.RepositoryManager, *bun.DB) {
	t.Helper()
	db := newTestDB(t)
	return users.NewRepositoryManager(db, users.WithUsersLogger(users.NopLogger())), db
}

var baseTime = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

type seed struct {
	name   string
	role   users.UserRole
	active bool
	// offset from baseTime, in minutes
	age int
}

func seedUser(t *testing.T, repo users.RepositoryManager, s seed) *users.User {
	t.Helper()

	role := s.role
	if role == "" {
		role = users.RoleUser
	}
	created := baseTime.Add(time.Duration(s.age) * time.Minute)

	u, err := repo.Users().Create(context.Background(), &users.User{
		ID:           uuid.New(),
		Name:         s.name,
		Email:        strings.ToLower(strings.ReplaceAll(s.name, " ", ".")) + "@example.com",
		PasswordHash: "hashed:Secret-123!",
		Role:         role,
		Active:       s.active,
		CreatedAt:    &created,
		UpdatedAt:    &created,
	})
	require.NoError(t, err)
	return u
}

func seedOrders(t *testing.T, db *bun.DB, user *users.User, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := db.NewInsert().Model(&users.Order{
			ID:        uuid.New(),
			UserID:    user.ID,
			Status:    users.OrderPaid,
			Reference: user.Name + "-" + uuid.NewString()[:8],
			Total:     1000,
		}).Exec(context.Background())
		require.NoError(t, err)
	}
}

func actorOf(u *users.User) users.ActorRef {
	return users.ActorFromUser(u)
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }
