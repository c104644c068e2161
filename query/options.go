package query

import (
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"github.com/uptrace/bun"
)

// Option keys accepted by SetOptions and reported by GetOptions.
const (
	OptionPage         = "page"
	OptionPerPage      = "perPage"
	OptionLimit        = "limit"
	OptionSortBy       = "sortBy"
	OptionSortDesc     = "sortDesc"
	OptionQ            = "q"
	OptionSearchBy     = "searchBy"
	OptionSearchExact  = "searchExact"
	OptionExcludeKey   = "excludeKey"
	OptionMapItems     = "mapItems"
	OptionModifyResult = "modifyResult"
	OptionEditQuery    = "editQuery"

	// OptionSearch is an alias for OptionQ.
	OptionSearch = "search"
)

// WildcardNeedle disables search when used as the only needle.
const WildcardNeedle = "**"

// Stage transforms a select query.
type Stage func(q *bun.SelectQuery) *bun.SelectQuery

// Options holds the query shaping options for one builder. Zero values mean
// "unset".
type Options[T any] struct {
	Page         int
	PerPage      int
	Limit        int
	SortBy       string
	SortDesc     bool
	Q            []string
	SearchBy     []string
	SearchExact  bool
	ExcludeKey   []any
	MapItems     func(T) T
	ModifyResult func([]T) []T
	EditQuery    Stage
}

// DefaultOptions returns the defaults every builder starts from.
func DefaultOptions[T any]() Options[T] {
	return Options[T]{Page: 1}
}

var optionKeys = []string{
	OptionPerPage,
	OptionPage,
	OptionLimit,
	OptionSortBy,
	OptionSortDesc,
	OptionQ,
	OptionSearchBy,
	OptionSearchExact,
	OptionExcludeKey,
	OptionMapItems,
	OptionModifyResult,
	OptionEditQuery,
}

// Merge overlays values on top of the current options. Keys outside the
// known option set are ignored.
func (o *Options[T]) Merge(values map[string]any) {
	if len(values) == 0 {
		return
	}

	if v, ok := values[OptionSearch]; ok {
		if _, has := values[OptionQ]; !has {
			values = cloneValues(values)
			values[OptionQ] = v
		}
	}

	for _, key := range optionKeys {
		v, ok := values[key]
		if !ok {
			continue
		}
		o.set(key, v)
	}
}

func (o *Options[T]) set(key string, v any) {
	switch key {
	case OptionPage:
		o.Page = ToInt(v)
	case OptionPerPage:
		o.PerPage = ToInt(v)
	case OptionLimit:
		o.Limit = ToInt(v)
	case OptionSortBy:
		o.SortBy = strings.TrimSpace(cast.ToString(v))
	case OptionSortDesc:
		o.SortDesc = cast.ToBool(v)
	case OptionQ:
		o.Q = toNeedles(v)
	case OptionSearchBy:
		o.SearchBy = toStringList(v)
	case OptionSearchExact:
		o.SearchExact = cast.ToBool(v)
	case OptionExcludeKey:
		o.ExcludeKey = toKeyList(v)
	case OptionMapItems:
		o.MapItems = asMapItems[T](v)
	case OptionModifyResult:
		o.ModifyResult = asModifyResult[T](v)
	case OptionEditQuery:
		o.EditQuery = asStage(v)
	}
}

// Map returns every known option. Unset options map to nil.
func (o Options[T]) Map() map[string]any {
	out := make(map[string]any, len(optionKeys))
	for _, key := range optionKeys {
		v, _ := o.Get(key)
		out[key] = v
	}
	return out
}

// Get returns a single option and whether it is set.
func (o Options[T]) Get(key string) (any, bool) {
	if key == OptionSearch {
		key = OptionQ
	}

	switch key {
	case OptionPage:
		return intOption(o.Page)
	case OptionPerPage:
		return intOption(o.PerPage)
	case OptionLimit:
		return intOption(o.Limit)
	case OptionSortBy:
		if o.SortBy == "" {
			return nil, false
		}
		return o.SortBy, true
	case OptionSortDesc:
		return o.SortDesc, true
	case OptionQ:
		if len(o.Q) == 0 {
			return nil, false
		}
		return o.Q, true
	case OptionSearchBy:
		if len(o.SearchBy) == 0 {
			return nil, false
		}
		return o.SearchBy, true
	case OptionSearchExact:
		return o.SearchExact, true
	case OptionExcludeKey:
		if len(o.ExcludeKey) == 0 {
			return nil, false
		}
		return o.ExcludeKey, true
	case OptionMapItems:
		if o.MapItems == nil {
			return nil, false
		}
		return o.MapItems, true
	case OptionModifyResult:
		if o.ModifyResult == nil {
			return nil, false
		}
		return o.ModifyResult, true
	case OptionEditQuery:
		if o.EditQuery == nil {
			return nil, false
		}
		return o.EditQuery, true
	}
	return nil, false
}

// searchEnabled reports whether the needles should produce a search.
func (o Options[T]) searchEnabled() bool {
	if len(o.Q) == 0 {
		return false
	}
	return !(len(o.Q) == 1 && o.Q[0] == WildcardNeedle)
}

func intOption(v int) (any, bool) {
	if v <= 0 {
		return nil, false
	}
	return v, true
}

func cloneValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values)+1)
	for k, v := range values {
		out[k] = v
	}
	return out
}

// toNeedles splits a single string on commas, keeps lists as given and drops
// empty needles.
func toNeedles(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(t) == WildcardNeedle {
			return []string{WildcardNeedle}
		}
		return compact(strings.Split(t, ","))
	default:
		return compact(cast.ToStringSlice(v))
	}
}

func toStringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return compact(strings.Split(t, ","))
	default:
		return compact(cast.ToStringSlice(v))
	}
}

// ToInt coerces a numeric option. Strings are always read as base 10, so
// "010" is 10 and "0x10" is 0. Unparseable values are 0.
func ToInt(v any) int {
	s, ok := v.(string)
	if !ok {
		return cast.ToInt(v)
	}

	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 0); err == nil {
		return int(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !strings.ContainsAny(s, "xX") &&
		!math.IsInf(f, 0) && !math.IsNaN(f) {
		return int(f)
	}
	return 0
}

func toKeyList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		parts := compact(strings.Split(t, ","))
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			out = append(out, p)
		}
		return out
	case []any:
		return t
	case []string:
		out := make([]any, 0, len(t))
		for _, p := range compact(t) {
			out = append(out, p)
		}
		return out
	case []int:
		out := make([]any, 0, len(t))
		for _, p := range t {
			out = append(out, p)
		}
		return out
	default:
		return flattenKeys(t)
	}
}

// flattenKeys spreads typed slices such as []int64 or []uuid.UUID into
// single keys. Byte arrays like uuid.UUID stay one key.
func flattenKeys(v any) []any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			if rv.Kind() == reflect.Slice {
				return []any{string(rv.Bytes())}
			}
			return []any{v}
		}
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, rv.Index(i).Interface())
		}
		return out
	default:
		return []any{v}
	}
}

func compact(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func asMapItems[T any](v any) func(T) T {
	switch fn := v.(type) {
	case func(T) T:
		return fn
	default:
		return nil
	}
}

func asModifyResult[T any](v any) func([]T) []T {
	switch fn := v.(type) {
	case func([]T) []T:
		return fn
	default:
		return nil
	}
}

func asStage(v any) Stage {
	switch fn := v.(type) {
	case Stage:
		return fn
	case func(*bun.SelectQuery) *bun.SelectQuery:
		return fn
	default:
		return nil
	}
}
