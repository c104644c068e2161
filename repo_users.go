package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-users/query"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Users interface {
	repository.Repository[*User]

	// NewQuery starts a request driven query over users. A nil tx uses the
	// repository connection.
	NewQuery(tx bun.IDB, criteria ...repository.SelectCriteria) *query.Builder[User]

	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	EmailInUseTx(ctx context.Context, tx bun.IDB, email string, exclude uuid.UUID) (bool, error)

	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)
	SaveProfileTx(ctx context.Context, tx bun.IDB, record *User, columns ...string) (*User, error)
	SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	RemoveTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type users struct {
	repository.Repository[*User]
	db     *bun.DB
	logger Logger
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

type UsersOption func(*users)

// WithUsersLogger sets the logger handed to query builders.
func WithUsersLogger(logger Logger) UsersOption {
	return func(u *users) {
		if logger != nil {
			u.logger = logger
		}
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

// ActiveUsers filters on the active flag.
func ActiveUsers(active bool) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.active = ?", active)
	}
}

// ByRoles keeps users holding one of roles.
func ByRoles(roles ...UserRole) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if len(roles) == 0 {
			return q
		}
		return q.Where("?TableAlias.role IN (?)", bun.In(roles))
	}
}

// NotByRoles drops users holding one of roles.
func NotByRoles(roles ...UserRole) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if len(roles) == 0 {
			return q
		}
		return q.Where("?TableAlias.role NOT IN (?)", bun.In(roles))
	}
}

// WithOrdersCount selects every user column plus an orders_count column.
func WithOrdersCount() repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			ColumnExpr("?TableAlias.*").
			ColumnExpr("(SELECT COUNT(*) FROM ? AS oc WHERE oc.user_id = ?TableAlias.id) AS orders_count", bun.Ident("orders"))
	}
}

func (a *users) conn(tx bun.IDB) bun.IDB {
	if tx != nil {
		return tx
	}
	return a.db
}

func (a *users) NewQuery(tx bun.IDB, criteria ...repository.SelectCriteria) *query.Builder[User] {
	b := query.New[User](a.conn(tx))
	if a.logger != nil {
		b.WithLogger(a.logger)
	}
	for _, c := range criteria {
		if c != nil {
			b.Apply(c)
		}
	}
	return b
}

func (a *users) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	record := &User{}
	err := a.conn(tx).NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if isNotFound(err) {
			return nil, withMetadata(ErrUserNotFound, map[string]any{"id": id.String()})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user")
	}

	return record, nil
}

func (a *users) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := a.conn(tx).NewSelect().
		Model(record).
		Where("LOWER(?TableAlias.email) = ?", normalizeEmail(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if isNotFound(err) {
			return nil, withMetadata(ErrUserNotFound, map[string]any{"email": email})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user")
	}

	return record, nil
}

func (a *users) EmailInUseTx(ctx context.Context, tx bun.IDB, email string, exclude uuid.UUID) (bool, error) {
	q := a.conn(tx).NewSelect().
		Model((*User)(nil)).
		Where("LOWER(?TableAlias.email) = ?", normalizeEmail(email))

	if exclude != uuid.Nil {
		q = q.Where("?TableAlias.id != ?", exclude)
	}

	exists, err := q.Exists(ctx)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email uniqueness")
	}
	return exists, nil
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *users) SaveProfileTx(ctx context.Context, tx bun.IDB, record *User, columns ...string) (*User, error) {
	if record == nil || record.ID == uuid.Nil {
		return nil, withMetadata(ErrUserNotFound, nil)
	}

	now := time.Now()
	record.UpdatedAt = &now
	if record.Email != "" {
		record.Email = normalizeEmail(record.Email)
	}

	cols := append(compactColumns(columns), "updated_at")

	res, err := a.conn(tx).NewUpdate().
		Model(record).
		Column(cols...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user profile")
	}

	if err := expectAffected(res, record.ID); err != nil {
		return nil, err
	}

	return record, nil
}

func (a *users) SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	now := time.Now()
	record := &User{
		ID:           id,
		PasswordHash: passwordHash,
		UpdatedAt:    &now,
	}

	res, err := a.conn(tx).NewUpdate().
		Model(record).
		Column("password_hash", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password")
	}

	return expectAffected(res, id)
}

func (a *users) RemoveTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := a.conn(tx).NewDelete().
		Model(&User{ID: id}).
		WherePK().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete user")
	}

	return expectAffected(res, id)
}

func expectAffected(res sql.Result, id uuid.UUID) error {
	if res == nil {
		return nil
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	if n == 0 {
		return withMetadata(ErrUserNotFound, map[string]any{"id": id.String()})
	}
	return nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleUser
	}

	record.Email = normalizeEmail(record.Email)
	record.Name = strings.TrimSpace(record.Name)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func compactColumns(columns []string) []string {
	out := make([]string, 0, len(columns)+1)
	seen := map[string]bool{}
	for _, c := range columns {
		c = strings.TrimSpace(c)
		if c == "" || c == "updated_at" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err)
}
