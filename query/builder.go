package query

import (
	"net/url"

	"github.com/uptrace/bun"
)

// Logger is the subset of the application logger used by the builder.
type Logger interface {
	Debug(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}

// Builder decorates a bun select query over T with search, sort, pagination,
// column filters and key exclusion. A Builder is request scoped and must not
// be shared between goroutines.
type Builder[T any] struct {
	db       bun.IDB
	query    *bun.SelectQuery
	items    []T
	opts     Options[T]
	resolved Options[T]
	params   url.Values
	built    bool
	selected bool
	logger   Logger
}

// New creates a builder selecting T from db.
func New[T any](db bun.IDB) *Builder[T] {
	b := &Builder[T]{
		db:     db,
		opts:   DefaultOptions[T](),
		logger: nopLogger{},
	}
	b.query = db.NewSelect().Model(&b.items)
	return b
}

// WithLogger sets the logger used to trace pipeline decisions.
func (b *Builder[T]) WithLogger(logger Logger) *Builder[T] {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithDefaults replaces the options the builder starts from. Options set
// afterwards are layered on top.
func (b *Builder[T]) WithDefaults(defaults Options[T]) *Builder[T] {
	b.opts = defaults
	return b
}

// Query exposes the underlying bun query for base constraints.
func (b *Builder[T]) Query() *bun.SelectQuery {
	return b.query
}

// Apply runs fns against the underlying query.
func (b *Builder[T]) Apply(fns ...func(*bun.SelectQuery) *bun.SelectQuery) *Builder[T] {
	for _, fn := range fns {
		if fn != nil {
			b.query = fn(b.query)
		}
	}
	return b
}

// Where adds a base constraint to the underlying query.
func (b *Builder[T]) Where(query string, args ...any) *Builder[T] {
	b.query = b.query.Where(query, args...)
	return b
}

// SetOptions merges known option keys into the current options.
func (b *Builder[T]) SetOptions(values map[string]any) *Builder[T] {
	b.opts.Merge(values)
	return b
}

// GetOptions returns every option, unset ones as nil.
func (b *Builder[T]) GetOptions() map[string]any {
	return b.current().Map()
}

// GetOption returns a single option and whether it is set.
func (b *Builder[T]) GetOption(key string) (any, bool) {
	return b.current().Get(key)
}

// Options returns a copy of the typed options.
func (b *Builder[T]) Options() Options[T] {
	return b.current()
}

func (b *Builder[T]) current() Options[T] {
	if b.built {
		return b.resolved
	}
	return b.opts
}

// Limit caps the number of rows of a non paginated result.
func (b *Builder[T]) Limit(limit int) *Builder[T] {
	b.opts.Limit = limit
	return b
}

// Total is an alias of Limit.
func (b *Builder[T]) Total(limit int) *Builder[T] {
	return b.Limit(limit)
}

// PerPage enables pagination with perPage rows per page.
func (b *Builder[T]) PerPage(perPage int) *Builder[T] {
	b.opts.PerPage = perPage
	return b
}

// Page selects the page to fetch when paginating.
func (b *Builder[T]) Page(page int) *Builder[T] {
	b.opts.Page = page
	return b
}

// ExcludeKey removes rows whose primary key is in keys.
func (b *Builder[T]) ExcludeKey(keys ...any) *Builder[T] {
	b.opts.ExcludeKey = keys
	return b
}

// Search sets the needle, the columns to search and whether to match exactly.
// needle may be a comma separated string or a []string.
func (b *Builder[T]) Search(needle any, searchBy []string, exact bool) *Builder[T] {
	b.opts.Q = toNeedles(needle)
	b.opts.SearchBy = compact(searchBy)
	b.opts.SearchExact = exact
	return b
}

// Sort orders the results by key.
func (b *Builder[T]) Sort(key string, desc bool) *Builder[T] {
	b.opts.SortBy = key
	b.opts.SortDesc = desc
	return b
}

// EditQuery registers a hook that runs after every other stage.
func (b *Builder[T]) EditQuery(fn Stage) *Builder[T] {
	b.opts.EditQuery = fn
	return b
}

// ModifyResult registers a collection level transform.
func (b *Builder[T]) ModifyResult(fn func([]T) []T) *Builder[T] {
	b.opts.ModifyResult = fn
	return b
}

// MapItems registers a per item transform.
func (b *Builder[T]) MapItems(fn func(T) T) *Builder[T] {
	b.opts.MapItems = fn
	return b
}

// UseRequest overlays the given request parameters when the query is built.
func (b *Builder[T]) UseRequest(params url.Values) *Builder[T] {
	b.params = params
	return b
}

// Build resolves the options and compiles them into the query. It runs once;
// later calls return the already built query.
func (b *Builder[T]) Build() *bun.SelectQuery {
	if b.built {
		return b.query
	}

	b.resolved = ApplyParams(b.opts, b.params)
	p := newPipeline(b.resolved, b.params)

	b.logger.Debug("query pipeline",
		"search", b.resolved.searchEnabled(),
		"search_by", p.searchBy,
		"sort_by", b.resolved.SortBy,
		"per_page", b.resolved.PerPage,
		"limit", b.resolved.Limit,
		"exclude", len(b.resolved.ExcludeKey),
	)

	b.query = p.apply(b.query)
	b.built = true
	return b.query
}

// String renders the built SQL, mostly useful for debugging.
func (b *Builder[T]) String() string {
	return b.Build().String()
}
