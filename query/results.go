package query

import (
	"context"
	"encoding/json"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Result is either a Collection or a *Page.
type Result[T any] interface {
	// Items returns the fetched rows.
	Items() []T
	// Len returns the number of fetched rows.
	Len() int
	// Paginated reports whether the result is a page.
	Paginated() bool
}

// PaginationCustomizer lets a model rewrite the page metadata when a page of
// it is encoded.
type PaginationCustomizer interface {
	CustomPagination(meta map[string]any) map[string]any
}

// Collection is a finite, non paginated result.
type Collection[T any] []T

func (c Collection[T]) Items() []T      { return c }
func (c Collection[T]) Len() int        { return len(c) }
func (c Collection[T]) Paginated() bool { return false }

// MarshalJSON encodes the collection as {"data": [...]}.
func (c Collection[T]) MarshalJSON() ([]byte, error) {
	data := []T(c)
	if data == nil {
		data = []T{}
	}
	return json.Marshal(map[string]any{"data": data})
}

// PageMeta holds the pagination metadata of a page.
type PageMeta struct {
	CurrentPage int  `json:"currentPage"`
	From        *int `json:"from"`
	LastPage    int  `json:"lastPage"`
	PerPage     int  `json:"perPage"`
	To          *int `json:"to"`
	Total       int  `json:"total"`
}

// Page is a paginated result.
type Page[T any] struct {
	PageMeta
	Data []T `json:"data"`
}

func (p *Page[T]) Items() []T      { return p.Data }
func (p *Page[T]) Len() int        { return len(p.Data) }
func (p *Page[T]) Paginated() bool { return true }

// NewPage builds a page and computes from, to and lastPage.
func NewPage[T any](items []T, total, perPage, currentPage int) *Page[T] {
	if currentPage < 1 {
		currentPage = 1
	}

	lastPage := 1
	if perPage > 0 && total > 0 {
		lastPage = (total + perPage - 1) / perPage
	}

	p := &Page[T]{
		PageMeta: PageMeta{
			CurrentPage: currentPage,
			LastPage:    lastPage,
			PerPage:     perPage,
			Total:       total,
		},
		Data: items,
	}
	p.refreshBounds()
	return p
}

func (p *Page[T]) refreshBounds() {
	p.From, p.To = nil, nil
	if len(p.Data) == 0 {
		return
	}
	from := (p.CurrentPage-1)*p.PerPage + 1
	to := from + len(p.Data) - 1
	p.From, p.To = &from, &to
}

// Meta returns the metadata as a map, after any model customization.
func (p *Page[T]) Meta() map[string]any {
	meta := map[string]any{
		"currentPage": p.CurrentPage,
		"from":        p.From,
		"lastPage":    p.LastPage,
		"perPage":     p.PerPage,
		"to":          p.To,
		"total":       p.Total,
	}

	for _, v := range probes[T]() {
		if c, ok := v.(PaginationCustomizer); ok {
			if custom := c.CustomPagination(meta); custom != nil {
				return custom
			}
			break
		}
	}

	return meta
}

// MarshalJSON encodes the page as {"data": [...], <meta>}.
func (p *Page[T]) MarshalJSON() ([]byte, error) {
	out := p.Meta()
	data := p.Data
	if data == nil {
		data = []T{}
	}
	out["data"] = data
	return json.Marshal(out)
}

// Results builds the query, executes it and applies the result transforms.
// A positive perPage yields a *Page, otherwise a Collection capped by limit.
// It may be called again to re-run the query; columns only apply on the
// first call.
func (b *Builder[T]) Results(ctx context.Context, columns ...string) (Result[T], error) {
	b.Build()
	b.selectColumns(columns)

	var (
		result Result[T]
		err    error
	)

	if b.resolved.PerPage > 0 {
		result, err = b.paginate(ctx)
	} else {
		result, err = b.collect(ctx)
	}
	if err != nil {
		return nil, err
	}

	result = modifyResults(result, b.resolved.ModifyResult)
	result = mapItems(result, b.resolved.MapItems)
	return result, nil
}

// Collect is Results for callers that always want the rows.
func (b *Builder[T]) Collect(ctx context.Context, columns ...string) ([]T, error) {
	res, err := b.Results(ctx, columns...)
	if err != nil {
		return nil, err
	}
	return res.Items(), nil
}

func (b *Builder[T]) selectColumns(columns []string) {
	if b.selected {
		return
	}
	b.selected = true

	cols := make([]string, 0, len(columns))
	for _, c := range columns {
		if c == "" || c == "*" {
			continue
		}
		cols = append(cols, c)
	}
	if len(cols) > 0 {
		b.query = b.query.Column(cols...)
	}
}

func (b *Builder[T]) paginate(ctx context.Context) (Result[T], error) {
	perPage := b.resolved.PerPage
	page := b.resolved.Page
	if page < 1 {
		page = 1
	}

	// clear the window of a previous run before counting
	b.query = b.query.Limit(0).Offset(0)

	var total int
	err := b.db.NewSelect().
		ColumnExpr("count(*)").
		TableExpr("(?) AS ?", b.query, bun.Ident("paginated")).
		Scan(ctx, &total)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count paginated results")
	}

	b.items = nil
	if err := b.query.Limit(perPage).Offset((page-1)*perPage).Scan(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to fetch paginated results")
	}

	return NewPage(b.items, total, perPage, page), nil
}

func (b *Builder[T]) collect(ctx context.Context) (Result[T], error) {
	if b.resolved.Limit > 0 {
		b.query = b.query.Limit(b.resolved.Limit)
	}

	b.items = nil
	if err := b.query.Scan(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to fetch results")
	}

	return Collection[T](b.items), nil
}

func modifyResults[T any](res Result[T], fn func([]T) []T) Result[T] {
	if fn == nil {
		return res
	}
	if page, ok := res.(*Page[T]); ok {
		page.Data = fn(page.Data)
		page.refreshBounds()
		return page
	}
	return Collection[T](fn(res.Items()))
}

func mapItems[T any](res Result[T], fn func(T) T) Result[T] {
	if fn == nil {
		return res
	}

	items := res.Items()
	mapped := make([]T, len(items))
	for i, item := range items {
		mapped[i] = fn(item)
	}

	if page, ok := res.(*Page[T]); ok {
		page.Data = mapped
		return page
	}
	return Collection[T](mapped)
}
