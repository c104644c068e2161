package query

import (
	"net/url"
	"reflect"

	"github.com/uptrace/bun"
)

// pipeline compiles resolved options into ordered stages:
// search, sort, column filter, key exclusion and the final edit hook.
type pipeline[T any] struct {
	opts      Options[T]
	params    url.Values
	searchBy  []string
	relations map[string]Relation
}

func newPipeline[T any](opts Options[T], params url.Values) pipeline[T] {
	p := pipeline[T]{
		opts:      opts,
		params:    params,
		searchBy:  opts.SearchBy,
		relations: relationsOf[T](),
	}

	if len(p.searchBy) == 0 {
		p.searchBy = defaultSearchColumns[T]()
	}

	return p
}

func (p pipeline[T]) stages() []Stage {
	return []Stage{
		p.search,
		p.sort,
		p.byColumn,
		p.excludeKey,
		p.finalEdit,
	}
}

func (p pipeline[T]) apply(q *bun.SelectQuery) *bun.SelectQuery {
	for _, stage := range p.stages() {
		q = stage(q)
	}
	return q
}

func (p pipeline[T]) search(q *bun.SelectQuery) *bun.SelectQuery {
	if !p.opts.searchEnabled() || len(p.searchBy) == 0 {
		return q
	}

	q, columns := resolveSearchKeys(q, p.relations, p.searchBy)
	if len(columns) == 0 {
		return q
	}

	return searchStage(columns, p.opts.Q, p.opts.SearchExact)(q)
}

func (p pipeline[T]) sort(q *bun.SelectQuery) *bun.SelectQuery {
	if p.opts.SortBy == "" {
		return q
	}

	dir := "ASC"
	if p.opts.SortDesc {
		dir = "DESC"
	}

	if table, column, ok := cutDotted(p.opts.SortBy); ok {
		return q.OrderExpr("?.? "+dir, bun.Ident(table), bun.Ident(column))
	}

	// Own columns are qualified so joins added by search stay unambiguous.
	// Anything else, such as a computed count, is left as is.
	if modelColumns[T](q)[p.opts.SortBy] {
		return q.OrderExpr("?TableAlias.? "+dir, bun.Ident(p.opts.SortBy))
	}
	return q.OrderExpr("? "+dir, bun.Ident(p.opts.SortBy))
}

// byColumn reads the raw request parameters rather than the option store.
func (p pipeline[T]) byColumn(q *bun.SelectQuery) *bun.SelectQuery {
	for _, filter := range ColumnFilters(p.params) {
		ref, args := columnRef(filter.Column)
		q = q.Where(ref+" "+filter.Operator()+" ?", append(args, filter.Value)...)
	}
	return q
}

func (p pipeline[T]) excludeKey(q *bun.SelectQuery) *bun.SelectQuery {
	if len(p.opts.ExcludeKey) == 0 {
		return q
	}
	return q.Where("?TablePKs NOT IN (?)", bun.In(p.opts.ExcludeKey))
}

func (p pipeline[T]) finalEdit(q *bun.SelectQuery) *bun.SelectQuery {
	if p.opts.EditQuery == nil {
		return q
	}
	if edited := p.opts.EditQuery(q); edited != nil {
		return edited
	}
	return q
}

func cutDotted(key string) (string, string, bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			if i == 0 || i == len(key)-1 {
				return "", "", false
			}
			return key[:i], key[i+1:], true
		}
	}
	return "", "", false
}

// probes returns values of T to check for capability interfaces. Pointer
// types are probed with a non nil value.
func probes[T any]() []any {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() == reflect.Pointer {
		return []any{reflect.New(t.Elem()).Interface()}
	}
	var zero T
	return []any{zero, new(T)}
}

// modelColumns lists the persisted columns of T's table.
func modelColumns[T any](q *bun.SelectQuery) map[string]bool {
	db := q.DB()
	if db == nil {
		return nil
	}

	typ := reflect.TypeOf((*T)(nil)).Elem()
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil
	}

	table := db.Table(typ)
	columns := make(map[string]bool, len(table.Fields))
	for _, field := range table.Fields {
		if field.Tag.HasOption("scanonly") {
			continue
		}
		columns[field.Name] = true
	}
	return columns
}

func defaultSearchColumns[T any]() []string {
	for _, v := range probes[T]() {
		if s, ok := v.(Searchable); ok {
			return compact(s.DefaultSearchColumns())
		}
	}
	return nil
}

func relationsOf[T any]() map[string]Relation {
	for _, v := range probes[T]() {
		if r, ok := v.(Relational); ok {
			return r.QueryRelations()
		}
	}
	return nil
}
