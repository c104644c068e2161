package users

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type UpdatePasswordMessage struct {
	Actor                ActorRef  `json:"-"`
	UserID               uuid.UUID `json:"id"`
	CurrentPassword      string    `json:"current_password"`
	Password             string    `json:"password"`
	PasswordConfirmation string    `json:"password_confirmation"`
}

func (e UpdatePasswordMessage) Type() string { return "user.password.update" }

func (e UpdatePasswordMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.UserID, validation.By(requiredUUID)),
		validation.Field(&e.Password, passwordRules()...),
		validation.Field(&e.PasswordConfirmation,
			validation.Required,
			validation.By(ValidateStringEquals(e.Password)),
		),
	)
}

type UpdatePasswordHandler struct {
	activityRecorder
	repo   RepositoryManager
	hasher PasswordHasher
}

func NewUpdatePasswordHandler(repo RepositoryManager) *UpdatePasswordHandler {
	return &UpdatePasswordHandler{
		activityRecorder: activityRecorder{
			activity: noopActivitySink{},
			logger:   defaultLogger(),
		},
		repo:   repo,
		hasher: BcryptHasher{},
	}
}

func (h *UpdatePasswordHandler) WithActivitySink(sink ActivitySink) *UpdatePasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *UpdatePasswordHandler) WithLogger(logger Logger) *UpdatePasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UpdatePasswordHandler) WithPasswordHasher(hasher PasswordHasher) *UpdatePasswordHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

func (h *UpdatePasswordHandler) Execute(ctx context.Context, event UpdatePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdatePasswordHandler) execute(ctx context.Context, event UpdatePasswordMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password payload")
	}

	event.Actor = actorFor(ctx, event.Actor)
	self := event.Actor.Is(event.UserID)

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().FindByIDTx(ctx, tx, event.UserID)
		if err != nil {
			return err
		}

		if !canEdit(event.Actor, user) {
			return withMetadata(ErrForbidden, map[string]any{
				"action":  "users.password",
				"user_id": user.ID.String(),
			})
		}

		// users changing their own password must prove they know it
		if self {
			if err := h.hasher.ComparePasswordAndHash(event.CurrentPassword, user.PasswordHash); err != nil {
				return withMetadata(ErrInvalidCurrentPassword, map[string]any{
					"user_id": user.ID.String(),
				})
			}
		}

		hash, err := h.hasher.HashPassword(event.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		return h.repo.Users().SetPasswordTx(ctx, tx, user.ID, hash)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password update transaction failed")
	}

	h.record(ctx, ActivityEvent{
		EventType: ActivityEventUserPasswordUpdated,
		Actor:     event.Actor,
		UserID:    event.UserID.String(),
		Metadata: map[string]any{
			"self": self,
		},
	})

	return nil
}
