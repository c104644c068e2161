package query

import (
	"net/url"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// Request parameter names read by the request mapper.
const (
	ParamPerPage     = "per_page"
	ParamPage        = "page"
	ParamLimit       = "limit"
	ParamSortBy      = "sortBy"
	ParamSortDesc    = "sortDesc"
	ParamQ           = "q"
	ParamSearch      = "search"
	ParamSearchBy    = "searchBy"
	ParamSearchExact = "searchExact"
	ParamExcludeKey  = "excludeKey"
)

var columnFilterPrefixes = []string{"col:", "column:", "-col:", "-column:"}

// ColumnFilter is an equality predicate taken from a raw request parameter.
type ColumnFilter struct {
	Column string
	Negate bool
	Value  string
}

// Operator returns the SQL comparison operator for the filter.
func (f ColumnFilter) Operator() string {
	if f.Negate {
		return "!="
	}
	return "="
}

// ApplyParams overlays request parameters on top of opts. Each field takes
// the request value, then its fallback parameter, then the current option.
// Numeric fields that coerce to zero end up unset.
func ApplyParams[T any](opts Options[T], params url.Values) Options[T] {
	if params == nil {
		return opts
	}

	current := opts.Map()
	overlay := map[string]any{
		OptionPerPage:     positiveOrNil(first(params, current[OptionPerPage], ParamPerPage)),
		OptionPage:        positiveOrNil(first(params, current[OptionPage], ParamPage)),
		OptionLimit:       positiveOrNil(first(params, current[OptionLimit], ParamLimit)),
		OptionSortBy:      first(params, current[OptionSortBy], ParamSortBy),
		OptionSortDesc:    cast.ToBool(first(params, current[OptionSortDesc], ParamSortDesc)),
		OptionQ:           list(params, current[OptionQ], ParamQ, ParamSearch),
		OptionSearchBy:    list(params, current[OptionSearchBy], ParamSearchBy),
		OptionSearchExact: cast.ToBool(first(params, current[OptionSearchExact], ParamSearchExact)),
		OptionExcludeKey:  list(params, current[OptionExcludeKey], ParamExcludeKey),
	}

	opts.Merge(overlay)
	return opts
}

// ColumnFilters extracts col:/column: filters from raw request parameters,
// sorted by parameter name.
func ColumnFilters(params url.Values) []ColumnFilter {
	if len(params) == 0 {
		return nil
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		if hasColumnPrefix(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	filters := make([]ColumnFilter, 0, len(keys))
	for _, key := range keys {
		column := key[strings.LastIndex(key, ":")+1:]
		if column == "" {
			continue
		}
		filters = append(filters, ColumnFilter{
			Column: column,
			Negate: strings.HasPrefix(key, "-"),
			Value:  params.Get(key),
		})
	}
	return filters
}

func hasColumnPrefix(key string) bool {
	for _, prefix := range columnFilterPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// first returns the first non empty value among names, or fallback.
func first(params url.Values, fallback any, names ...string) any {
	for _, name := range names {
		if values, ok := params[name]; ok && len(values) > 0 && values[0] != "" {
			return values[0]
		}
	}
	return fallback
}

// list reads a parameter that may be repeated or comma separated.
func list(params url.Values, fallback any, names ...string) any {
	for _, name := range names {
		values, ok := params[name]
		if !ok || len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			if values[0] == "" {
				continue
			}
			return values[0]
		}
		return values
	}
	return fallback
}

func positiveOrNil(v any) any {
	n := ToInt(v)
	if n <= 0 {
		return 0
	}
	return n
}
