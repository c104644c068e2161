package query

import (
	"context"
	"database/sql"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

const (
	sqliteCreateUsers = `CREATE TABLE users (
    id INTEGER NOT NULL PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    team_id INTEGER
);`
	sqliteCreateOrders = `CREATE TABLE orders (
    id INTEGER NOT NULL PRIMARY KEY,
    user_id INTEGER NOT NULL,
    status TEXT NOT NULL,
    FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
);`
	sqliteCreateTeams = `CREATE TABLE teams (
    id INTEGER NOT NULL PRIMARY KEY,
    title TEXT NOT NULL
);`
)

type testUser struct {
	bun.BaseModel `bun:"table:users,alias:u"`
	ID            int64  `bun:"id,pk"`
	Name          string `bun:"name"`
	Email         string `bun:"email"`
	TeamID        int64  `bun:"team_id,nullzero"`
}

func (testUser) DefaultSearchColumns() []string {
	return []string{"name", "email"}
}

func (testUser) QueryRelations() map[string]Relation {
	return map[string]Relation{
		"orders":  {Kind: HasMany, Table: "orders", ForeignKey: "user_id"},
		"team":    {Kind: BelongsTo, Table: "teams", ForeignKey: "team_id"},
		"profile": {Kind: HasOne, Table: "profiles", ForeignKey: "user_id"},
	}
}

type testOrder struct {
	bun.BaseModel `bun:"table:orders,alias:o"`
	ID            int64  `bun:"id,pk"`
	UserID        int64  `bun:"user_id"`
	Status        string `bun:"status"`
}

// plainRow has no search capability.
type plainRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`
	ID            int64  `bun:"id,pk"`
	Name          string `bun:"name"`
}

func setupDB(t *testing.T) (*bun.DB, func()) {
	t.Helper()

	sqldb, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	for _, ddl := range []string{sqliteCreateTeams, sqliteCreateUsers, sqliteCreateOrders} {
		_, err = db.Exec(ddl)
		require.NoError(t, err)
	}

	cleanup := func() {
		_ = db.Close()
	}
	return db, cleanup
}

func seedUsers(t *testing.T, db *bun.DB, names ...string) {
	t.Helper()
	for i, name := range names {
		user := &testUser{
			ID:    int64(i + 1),
			Name:  name,
			Email: strings.ToLower(name) + "@example.com",
		}
		_, err := db.NewInsert().Model(user).Exec(context.Background())
		require.NoError(t, err)
	}
}

func seedOrder(t *testing.T, db *bun.DB, id, userID int64, status string) {
	t.Helper()
	_, err := db.NewInsert().Model(&testOrder{ID: id, UserID: userID, Status: status}).Exec(context.Background())
	require.NoError(t, err)
}

func names(items []testUser) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Name)
	}
	return out
}

func TestBuilderPartialSearchIsCaseInsensitive(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()
	seedUsers(t, db, "Anna", "Bob", "Carl")

	res, err := New[testUser](db).
		SetOptions(map[string]any{"searchBy": "name", "q": "ann,bob", "searchExact": false}).
		Sort("id", false).
		Results(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Paginated())
	assert.Equal(t, []string{"Anna", "Bob"}, names(res.Items()))
}

func TestBuilderExactSearch(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()
	seedUsers(t, db, "Anna", "Bob", "Carl")

	items, err := New[testUser](db).
		Search([]string{"Bob", "Carl"}, []string{"name"}, true).
		Sort("name", false).
		Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Carl"}, names(items))

	items, err = New[testUser](db).
		Search("bo", []string{"name"}, true).
		Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestBuilderSearchUsesDefaultColumns(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()
	seedUsers(t, db, "Anna", "Bob", "Carl")

	items, err := New[testUser](db).
		UseRequest(url.Values{"q": {"carl@example.com"}}).
		Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Carl"}, names(items))
}

func TestBuilderSearchWithoutColumnsIsSkipped(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()
	seedUsers(t, db, "Anna", "Bob")

	items, err := New[plainRow](db).
		SetOptions(map[string]any{"q": "anna"}).
		Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestBuilderWildcardAndEmptyNeedles(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()
	seedUsers(t, db, "Anna", "Bob", "Carl")

	for _, needle := range []any{"**", "", nil, " , "} {
		b := New[testUser](db).Search(needle, []string{"name"}, false)
		items, err := b.Collect(context.Background())
		require.NoError(t, err)
		assert.Len(t, items, 3, "needle %v", needle)
		assert.NotContains(t, b.String(), "LIKE")
	}
}

func TestBuilderSortAscending(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()
	seedUsers(t, db, "carl", "aab")

	items, err := New[testUser](db).
		UseRequest(url.Values{"sortBy": {"name"}, "sortDesc": {"false"}}).
		Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"aab", "carl"}, names(items))

	items, err = New[testUser](db).
		Sort("name", true).
		Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"carl", "aab"}, names(items))
}

func TestBuilderPaginates(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()
	seedUsers(t, db, "a", "b", "c", "d")

	res, err := New[testUser](db).
		SetOptions(map[string]any{"perPage": 2, "page": 1}).
		Sort("id", false).
		Results(context.Background())
	require.NoError(t, err)

	page, ok := res.(*Page[testUser])
	require.True(t, ok)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 2, page.LastPage)
	assert.Equal(t, 2, page.PerPage)
	assert.Equal(t, 1, page.CurrentPage)
	require.NotNil(t, page.From)
	require.NotNil(t, page.To)
	assert.Equal(t, 1, *page.From)
	assert.Equal(t, 2, *page.To)
	assert.Equal(t, []string{"a", "b"}, names(page.Data))
}

func TestBuilderPaginatesFromRequest(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()
	seedUsers(t, db, "a", "b", "c", "d", "e")

	res, err := New[testUser](db).
		Sort("id", false).
		UseRequest(url.Values{"per_page": {"2"}, "page": {"3"}}).
		Results(context.Background())
	require.NoError(t, err)

	page, ok := res.(*Page[testUser])
	require.True(t, ok)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.LastPage)
	assert.Equal(t, 3, page.CurrentPage)
	assert.Equal(t, []string{"e"}, names(page.Data))
	assert.Equal(t, 5, *page.From)
	assert.Equal(t, 5, *page.To)
}

func TestBuilderPageZeroMeansFirstPage(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()
	seedUsers(t, db, "a", "b", "c")

	res, err := New[testUser](db).
		Sort("id", false).
		UseRequest(url.Values{"per_page": {"2"}, "page": {"0"}}).
		Results(context.Background())
	require.NoError(t, err)

	page := res.(*Page[testUser])
	assert.Equal(t, 1, page.CurrentPage)
	assert.Equal(t, []string{"a", "b"}, names(page.Data))
}

func TestBuilderEmptyPage(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()
	seedUsers(t, db, "a")

	res, err := New[testUser](db).PerPage(10).Page(4).Results(context.Background())
	require.NoError(t, err)

	page := res.(*Page[testUser])
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 1, page.LastPage)
	assert.Nil(t, page.From)
	assert.Nil(t, page.To)
	assert.Empty(t, page.Data)
}

func TestBuilderLimitCapsCollection(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()
	seedUsers(t, db, "a", "b", "c", "d")

	res, err := New[testUser](db).Limit(3).Sort("id", false).Results(context.Background())
	require.NoError(t, err)

	_, ok := res.(Collection[testUser])
	require.True(t, ok)
	assert.Equal(t, 3, res.Len())
}

func TestBuilderHasManySearchJoinsDistinct(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()
	seedUsers(t, db, "Anna", "Bob", "Carl")
	seedOrder(t, db, 1, 1, "shipped")
	seedOrder(t, db, 2, 1, "pending")
	seedOrder(t, db, 3, 1, "pending")
	seedOrder(t, db, 4, 2, "pending")

	b := New[testUser](db).
		Search("pending", []string{"orders.status"}, false).
		Sort("id", false)

	items, err := b.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Anna", "Bob"}, names(items))

	stmt := b.String()
	assert.Contains(t, stmt, "DISTINCT")
	assert.Contains(t, stmt, `JOIN "orders"`)
	assert.Equal(t, 1, strings.Count(stmt, "JOIN"))
}

func TestBuilderJoinsRelatedTableOnce(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()
	seedUsers(t, db, "Anna")
	seedOrder(t, db, 1, 1, "shipped")

	b := New[testUser](db).
		Search("ship", []string{"orders.status", "Orders.Status", "orders.id"}, false)

	items, err := b.Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, strings.Count(b.String(), "JOIN"))
}

func TestBuilderBelongsToSearch(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()

	ctx := context.Background()
	_, err := db.Exec("INSERT INTO teams (id, title) VALUES (1, 'Platform'), (2, 'Growth')")
	require.NoError(t, err)
	for _, u := range []*testUser{
		{ID: 1, Name: "Anna", Email: "anna@example.com", TeamID: 1},
		{ID: 2, Name: "Bob", Email: "bob@example.com", TeamID: 2},
	} {
		_, err := db.NewInsert().Model(u).Exec(ctx)
		require.NoError(t, err)
	}

	items, err := New[testUser](db).
		Search("growth", []string{"team.title"}, false).
		Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob"}, names(items))
}

func TestBuilderDropsUnsupportedRelationKeys(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()
	seedUsers(t, db, "Anna", "Bob")

	for _, key := range []string{"profile.bio", "missing.name", "orders.status.deep"} {
		b := New[testUser](db).Search("anna", []string{key}, false)
		items, err := b.Collect(context.Background())
		require.NoError(t, err, key)
		assert.Len(t, items, 2, key)
		assert.NotContains(t, b.String(), "JOIN", key)
	}

	items, err := New[testUser](db).
		Search("anna", []string{"profile.bio", "name"}, false).
		Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Anna"}, names(items))
}

func TestBuilderExclusionAppliesAfterSearch(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()
	seedUsers(t, db, "Anna", "Annabel", "Bob")

	items, err := New[testUser](db).
		Search("ann", []string{"name"}, false).
		ExcludeKey(1).
		Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Annabel"}, names(items))
}

func TestBuilderExclusionWithRelationSearch(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()
	seedUsers(t, db, "Anna", "Bob", "Carl")
	seedOrder(t, db, 1, 1, "paid")
	seedOrder(t, db, 2, 2, "paid")
	seedOrder(t, db, 3, 3, "pending")

	b := New[testUser](db).
		Search("paid", []string{"orders.status"}, false).
		ExcludeKey(int64(1)).
		Sort("id", false)

	items, err := b.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob"}, names(items))
	assert.Contains(t, b.String(), `"u"."id" NOT IN (1)`)
}

func TestBuilderExclusionFromTypedSlice(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()
	seedUsers(t, db, "Anna", "Bob", "Carl")

	items, err := New[testUser](db).
		SetOptions(map[string]any{"excludeKey": []int64{1, 2}}).
		Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Carl"}, names(items))
}

func TestBuilderColumnFilters(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()
	seedUsers(t, db, "Anna", "Bob", "Carl")

	items, err := New[testUser](db).
		Sort("id", false).
		UseRequest(url.Values{"-col:name": {"Anna"}}).
		Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Carl"}, names(items))

	items, err = New[testUser](db).
		UseRequest(url.Values{"column:email": {"bob@example.com"}}).
		Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob"}, names(items))
}

func TestBuilderMapItemsPreservesOrderAndCount(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()
	seedUsers(t, db, "a", "b", "c")

	items, err := New[testUser](db).
		Sort("id", true).
		MapItems(func(u testUser) testUser {
			u.Name = strings.ToUpper(u.Name)
			return u
		}).
		Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B", "A"}, names(items))
}

func TestBuilderModifyResultKeepsContainerKind(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()
	seedUsers(t, db, "a", "b", "c", "d")

	dropFirst := func(items []testUser) []testUser {
		if len(items) == 0 {
			return items
		}
		return items[1:]
	}

	res, err := New[testUser](db).
		Sort("id", false).
		PerPage(3).
		ModifyResult(dropFirst).
		MapItems(func(u testUser) testUser {
			u.Name += "!"
			return u
		}).
		Results(context.Background())
	require.NoError(t, err)

	page, ok := res.(*Page[testUser])
	require.True(t, ok)
	assert.Equal(t, []string{"b!", "c!"}, names(page.Data))
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 2, *page.To)

	res, err = New[testUser](db).
		Sort("id", false).
		ModifyResult(dropFirst).
		Results(context.Background())
	require.NoError(t, err)

	_, ok = res.(Collection[testUser])
	require.True(t, ok)
	assert.Equal(t, 3, res.Len())
}

func TestBuilderEditQueryRunsLast(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()
	seedUsers(t, db, "Anna", "Bob", "Carl")

	items, err := New[testUser](db).
		Search("a", []string{"name"}, false).
		EditQuery(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.id > ?", 1)
		}).
		Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Carl"}, names(items))
}

func TestBuilderBaseConstraints(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()
	seedUsers(t, db, "Anna", "Bob", "Carl")

	items, err := New[testUser](db).
		Where("?TableAlias.id != ?", 2).
		Apply(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("id")
		}).
		Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Anna", "Carl"}, names(items))
}

func TestBuilderBuildRunsOnce(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()

	b := New[testUser](db).Search("x", []string{"name"}, false)
	first := b.String()
	second := b.String()
	assert.Equal(t, first, second)
	assert.Equal(t, 1, strings.Count(second, "LIKE"))
}

func TestBuilderColumnsSelection(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()
	seedUsers(t, db, "Anna")

	res, err := New[testUser](db).Results(context.Background(), "id", "name")
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, "Anna", res.Items()[0].Name)
	assert.Empty(t, res.Items()[0].Email)
}
