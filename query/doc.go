// Package query decorates bun select queries with request driven search,
// sorting, pagination, column filters and key exclusion.
//
// A Builder collects options from fluent setters, SetOptions maps and,
// optionally, HTTP request parameters. Build resolves the options once and
// compiles them into the query in a fixed order:
//
//   - search: grouped OR predicates over the searched columns. Dotted keys
//     such as "orders.status" join the related table declared through the
//     Relational capability. Only belongs-to and has-many relations resolve.
//   - sort: ORDER BY sortBy.
//   - column filters: col:<name>=value and -col:<name>=value parameters, read
//     straight from the request.
//   - key exclusion: primary keys listed in excludeKey.
//   - editQuery: a caller supplied hook.
//
// Results executes the query. With perPage set the result is a *Page carrying
// currentPage, from, lastPage, perPage, to and total; otherwise it is a
// Collection, capped by limit when set. ModifyResult then MapItems run on the
// fetched rows.
//
//	res, err := query.New[users.User](db).
//		Sort("created_at", true).
//		UseRequest(r.URL.Query()).
//		Results(ctx)
package query
