// Package users is a small user management backend built on Bun.
//
// Listing:
//   - Users().NewQuery returns a query.Builder scoped to the users table.
//     ListUsersHandler applies the index constraints (active regular users,
//     orders_count, newest first) and shapes the rest from request
//     parameters: search, search_columns, exclude_columns, sort_by,
//     sort_desc, page, per_page and column filters. See package query.
//
// Commands:
//   - CreateUserHandler, UpdateUserProfileHandler, UpdatePasswordHandler and
//     DeleteUserHandler run inside RepositoryManager.RunInTx and return
//     go-errors values carrying text codes (EMAIL_TAKEN, USER_NOT_FOUND...).
//   - Role policy: admins manage everyone, managers manage regular users,
//     users only themselves. SystemActor bypasses the checks.
//
// Activity sinks:
//   - Every command emits an ActivityEvent on success. Sinks run best-effort
//     (errors are logged). NotificationSink mails new users and the
//     configured system administrators.
package users
