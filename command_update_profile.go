package users

import (
	"context"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UpdateUserProfileMessage carries a partial profile update. Nil fields are
// left untouched.
type UpdateUserProfileMessage struct {
	Actor  ActorRef  `json:"-"`
	UserID uuid.UUID `json:"id"`
	Name   *string   `json:"name,omitempty"`
	Email  *string   `json:"email,omitempty"`
	Role   *UserRole `json:"role,omitempty"`
	Active *bool     `json:"active,omitempty"`
}

func (e UpdateUserProfileMessage) Type() string { return "user.profile.update" }

func (e UpdateUserProfileMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.UserID, validation.By(requiredUUID)),
		validation.Field(&e.Name, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&e.Email, validation.NilOrNotEmpty, validation.Length(3, 255), is.Email),
		validation.Field(&e.Role, validation.By(validRole)),
	)
}

type UpdateUserProfileHandler struct {
	activityRecorder
	repo RepositoryManager
}

// NewUpdateUserProfileHandler creates a handler with sane defaults.
func NewUpdateUserProfileHandler(repo RepositoryManager) *UpdateUserProfileHandler {
	return &UpdateUserProfileHandler{
		activityRecorder: activityRecorder{
			activity: noopActivitySink{},
			logger:   defaultLogger(),
		},
		repo: repo,
	}
}

// WithActivitySink sets the sink used to emit user.profile.updated events.
func (h *UpdateUserProfileHandler) WithActivitySink(sink ActivitySink) *UpdateUserProfileHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *UpdateUserProfileHandler) WithLogger(logger Logger) *UpdateUserProfileHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithLoggerProvider resolves the handler logger from provider.
func (h *UpdateUserProfileHandler) WithLoggerProvider(provider LoggerProvider) *UpdateUserProfileHandler {
	h.logger = ResolveLogger("users.update", provider, h.logger)
	return h
}

func (h *UpdateUserProfileHandler) Execute(ctx context.Context, event UpdateUserProfileMessage) error {
	_, err := h.Update(ctx, event)
	return err
}

// Update runs the command and returns the updated user.
func (h *UpdateUserProfileHandler) Update(ctx context.Context, event UpdateUserProfileMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateUserProfileHandler) execute(ctx context.Context, event UpdateUserProfileMessage) (*User, error) {
	if err := event.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid profile payload")
	}

	event.Actor = actorFor(ctx, event.Actor)

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var (
		updated *User
		changed []string
	)

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().FindByIDTx(ctx, tx, event.UserID)
		if err != nil {
			return err
		}

		if !canEdit(event.Actor, user) {
			return withMetadata(ErrForbidden, map[string]any{
				"action":  "users.update",
				"user_id": user.ID.String(),
			})
		}

		fields := map[string]bool{}

		if event.Name != nil && *event.Name != user.Name {
			user.Name = *event.Name
			fields["name"] = true
		}

		if event.Email != nil && normalizeEmail(*event.Email) != user.Email {
			email := normalizeEmail(*event.Email)
			taken, err := h.repo.Users().EmailInUseTx(ctx, tx, email, user.ID)
			if err != nil {
				return err
			}
			if taken {
				return withMetadata(ErrEmailTaken, map[string]any{"email": email})
			}
			user.Email = email
			fields["email"] = true
		}

		if event.Role != nil && *event.Role != user.Role {
			if !event.Actor.IsSystem() && !event.Actor.Role.CanManage(*event.Role) {
				return withMetadata(ErrForbidden, map[string]any{
					"action": "users.update.role",
					"role":   string(*event.Role),
				})
			}
			user.Role = *event.Role
			fields["role"] = true
		}

		if event.Active != nil && *event.Active != user.Active {
			user.Active = *event.Active
			fields["active"] = true
		}

		for f := range fields {
			changed = append(changed, f)
		}
		sort.Strings(changed)

		if len(changed) == 0 {
			updated = user
			return nil
		}

		updated, err = h.repo.Users().SaveProfileTx(ctx, tx, user, changed...)
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "profile update transaction failed")
	}

	if len(changed) > 0 {
		h.record(ctx, ActivityEvent{
			EventType: ActivityEventUserProfileUpdated,
			Actor:     event.Actor,
			UserID:    updated.ID.String(),
			Metadata: map[string]any{
				"fields": changed,
			},
		})
	}

	return updated, nil
}

// canEdit applies the role policy: system actors and users editing
// themselves always can, otherwise the actor role must manage the target.
func canEdit(actor ActorRef, target *User) bool {
	if target == nil {
		return false
	}
	if actor.IsSystem() || actor.Is(target.ID) {
		return true
	}
	return actor.Role.CanManage(target.Role)
}
