package users

import (
	"context"
	"net/url"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-users/query"
	"github.com/spf13/cast"
)

// ListUsersHandler serves the user index: active regular users with their
// order counts, newest first, shaped by request parameters.
type ListUsersHandler struct {
	repo           RepositoryManager
	logger         Logger
	defaultPerPage int
	maxPerPage     int
}

// NewListUsersHandler creates a handler. cfg may be nil.
func NewListUsersHandler(repo RepositoryManager, cfg Config) *ListUsersHandler {
	h := &ListUsersHandler{
		repo:   repo,
		logger: defaultLogger(),
	}
	if cfg != nil {
		h.defaultPerPage = cfg.GetDefaultPerPage()
		h.maxPerPage = cfg.GetMaxPerPage()
	}
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ListUsersHandler) WithLogger(logger Logger) *ListUsersHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithLoggerProvider resolves the handler logger from provider.
func (h *ListUsersHandler) WithLoggerProvider(provider LoggerProvider) *ListUsersHandler {
	h.logger = ResolveLogger("users.list", provider, h.logger)
	return h
}

// ListUsers returns a collection, or a page when per_page is requested or a
// default page size is configured.
func (h *ListUsersHandler) ListUsers(ctx context.Context, actor ActorRef, params url.Values) (query.Result[User], error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user listing",
		)
	default:
	}

	actor = actorFor(ctx, actor)
	if !actor.IsSystem() && !actor.Role.CanViewUsers() {
		return nil, withMetadata(ErrForbidden, map[string]any{
			"action": "users.list",
			"role":   string(actor.Role),
		})
	}

	b := h.repo.Users().NewQuery(nil,
		WithOrdersCount(),
		ActiveUsers(true),
		ByRoles(RoleUser),
	).
		WithLogger(h.logger).
		Sort("created_at", true).
		MapItems(func(u User) User {
			u.CanEdit = actor.IsSystem() || actor.Role.CanManage(u.Role)
			return u
		})

	if h.defaultPerPage > 0 {
		b.PerPage(h.defaultPerPage)
	}

	res, err := b.UseRequest(h.clampParams(params)).Results(ctx)
	if err != nil {
		return nil, err
	}

	h.logger.Debug("listed users",
		"actor", actor.ID,
		"count", res.Len(),
		"paginated", res.Paginated(),
	)

	return res, nil
}

// clampParams caps per_page at the configured maximum.
func (h *ListUsersHandler) clampParams(params url.Values) url.Values {
	if h.maxPerPage <= 0 || params == nil {
		return params
	}

	if query.ToInt(params.Get(query.ParamPerPage)) <= h.maxPerPage {
		return params
	}

	out := make(url.Values, len(params))
	for k, v := range params {
		out[k] = append([]string(nil), v...)
	}
	out.Set(query.ParamPerPage, cast.ToString(h.maxPerPage))
	return out
}
