package query

import (
	"fmt"
	"strings"

	"github.com/stoewer/go-strcase"
	"github.com/uptrace/bun"
)

// RelationKind is the cardinality of a model relation.
type RelationKind string

const (
	BelongsTo  RelationKind = "belongs-to"
	HasOne     RelationKind = "has-one"
	HasMany    RelationKind = "has-many"
	ManyToMany RelationKind = "many-to-many"
)

// Relation describes how a subject table reaches a related table.
//
// For HasMany, ForeignKey lives on the related table and points at the
// subject's LocalKey. For BelongsTo, ForeignKey lives on the subject table and
// points at the related table's OwnerKey. Both keys default to "id".
type Relation struct {
	Kind       RelationKind
	Table      string
	ForeignKey string
	LocalKey   string
	OwnerKey   string
}

// Searchable is implemented by models that declare default search columns.
type Searchable interface {
	DefaultSearchColumns() []string
}

// Relational is implemented by models that expose relations to the search
// compiler, keyed by relation name.
type Relational interface {
	QueryRelations() map[string]Relation
}

func (r Relation) joinable() bool {
	return r.Kind == BelongsTo || r.Kind == HasMany
}

func (r Relation) localKey() string {
	if r.LocalKey == "" {
		return "id"
	}
	return r.LocalKey
}

func (r Relation) ownerKey() string {
	if r.OwnerKey == "" {
		return "id"
	}
	return r.OwnerKey
}

// join adds the JOIN clause for the relation.
func (r Relation) join(q *bun.SelectQuery) *bun.SelectQuery {
	table := bun.Ident(r.Table)
	switch r.Kind {
	case HasMany:
		return q.Join("JOIN ? ON ?.? = ?TableAlias.?",
			table, table, bun.Ident(r.ForeignKey), bun.Ident(r.localKey()))
	default:
		return q.Join("JOIN ? ON ?.? = ?TableAlias.?",
			table, table, bun.Ident(r.ownerKey()), bun.Ident(r.ForeignKey))
	}
}

// resolveSearchKeys turns dotted relation keys into table qualified keys,
// joining each related table once. Keys that point at an unknown or
// unsupported relation are dropped.
func resolveSearchKeys(q *bun.SelectQuery, relations map[string]Relation, keys []string) (*bun.SelectQuery, []string) {
	joined := map[string]bool{}
	seen := map[string]bool{}
	resolved := make([]string, 0, len(keys))

	add := func(key string) {
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		resolved = append(resolved, key)
	}

	for _, key := range keys {
		key = strings.TrimSpace(key)
		name, column, dotted := strings.Cut(key, ".")
		if !dotted {
			add(key)
			continue
		}

		if column == "" || strings.Contains(column, ".") {
			continue
		}

		rel, ok := relations[name]
		if !ok || !rel.joinable() || rel.Table == "" || rel.ForeignKey == "" {
			continue
		}

		if !joined[rel.Table] {
			q = rel.join(q).Distinct()
			joined[rel.Table] = true
		}
		add(rel.Table + "." + column)
	}

	return q, resolved
}

// normalizeColumn lowercases and snake cases every dotted segment.
func normalizeColumn(key string) string {
	parts := strings.Split(key, ".")
	for i, part := range parts {
		parts[i] = strcase.SnakeCase(strings.ToLower(strings.TrimSpace(part)))
	}
	return strings.Join(parts, ".")
}

// columnRef returns a query fragment and args referencing key. Plain columns
// are qualified with the subject table alias.
func columnRef(key string) (string, []any) {
	if table, column, ok := strings.Cut(key, "."); ok {
		return "?.?", []any{bun.Ident(table), bun.Ident(column)}
	}
	return "?TableAlias.?", []any{bun.Ident(key)}
}

// searchStage adds one grouped OR predicate over every column and needle.
func searchStage(columns, needles []string, exact bool) Stage {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			for _, key := range columns {
				ref, args := columnRef(normalizeColumn(key))
				if exact {
					q = q.WhereOr(ref+" IN (?)", append(args, bun.In(needles))...)
					continue
				}
				for _, needle := range needles {
					pattern := "%" + strings.ToLower(needle) + "%"
					q = q.WhereOr(fmt.Sprintf("LOWER(%s) LIKE ?", ref), append(cloneArgs(args), pattern)...)
				}
			}
			return q
		})
	}
}

func cloneArgs(args []any) []any {
	out := make([]any, len(args), len(args)+1)
	copy(out, args)
	return out
}
