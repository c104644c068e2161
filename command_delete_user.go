package users

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type DeleteUserMessage struct {
	Actor  ActorRef  `json:"-"`
	UserID uuid.UUID `json:"id"`
}

func (e DeleteUserMessage) Type() string { return "user.delete" }

func (e DeleteUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.UserID, validation.By(requiredUUID)),
	)
}

type DeleteUserHandler struct {
	activityRecorder
	repo RepositoryManager
}

func NewDeleteUserHandler(repo RepositoryManager) *DeleteUserHandler {
	return &DeleteUserHandler{
		activityRecorder: activityRecorder{
			activity: noopActivitySink{},
			logger:   defaultLogger(),
		},
		repo: repo,
	}
}

func (h *DeleteUserHandler) WithActivitySink(sink ActivitySink) *DeleteUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *DeleteUserHandler) WithLogger(logger Logger) *DeleteUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *DeleteUserHandler) Execute(ctx context.Context, event DeleteUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user deletion",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *DeleteUserHandler) execute(ctx context.Context, event DeleteUserMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid delete payload")
	}

	event.Actor = actorFor(ctx, event.Actor)
	if event.Actor.Is(event.UserID) {
		return withMetadata(ErrCannotDeleteSelf, map[string]any{
			"user_id": event.UserID.String(),
		})
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var email string
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().FindByIDTx(ctx, tx, event.UserID)
		if err != nil {
			return err
		}

		if !event.Actor.IsSystem() && !event.Actor.Role.CanManage(user.Role) {
			return withMetadata(ErrForbidden, map[string]any{
				"action":  "users.delete",
				"user_id": user.ID.String(),
			})
		}

		email = user.Email
		return h.repo.Users().RemoveTx(ctx, tx, user.ID)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user deletion transaction failed")
	}

	h.record(ctx, ActivityEvent{
		EventType: ActivityEventUserDeleted,
		Actor:     event.Actor,
		UserID:    event.UserID.String(),
		Metadata: map[string]any{
			"email": email,
		},
	})

	return nil
}
