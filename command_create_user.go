package users

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type CreateUserMessage struct {
	Actor                ActorRef `json:"-"`
	Name                 string   `json:"name"`
	Email                string   `json:"email"`
	Password             string   `json:"password"`
	PasswordConfirmation string   `json:"password_confirmation"`
	Role                 UserRole `json:"role"`
	Active               *bool    `json:"active"`
	UseHashid            bool     `json:"-"`
}

func (e CreateUserMessage) Type() string { return "user.create" }

func (e CreateUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&e.Email, validation.Required, validation.Length(3, 255), is.Email),
		validation.Field(&e.Password, passwordRules()...),
		validation.Field(&e.PasswordConfirmation,
			validation.Required,
			validation.By(ValidateStringEquals(e.Password)),
		),
		validation.Field(&e.Role, validation.By(validRole)),
	)
}

type CreateUserHandler struct {
	activityRecorder
	repo   RepositoryManager
	hasher PasswordHasher
}

// NewCreateUserHandler creates a handler with sane defaults.
func NewCreateUserHandler(repo RepositoryManager) *CreateUserHandler {
	return &CreateUserHandler{
		activityRecorder: activityRecorder{
			activity: noopActivitySink{},
			logger:   defaultLogger(),
		},
		repo:   repo,
		hasher: BcryptHasher{},
	}
}

// WithActivitySink sets the sink used to emit user.created events.
func (h *CreateUserHandler) WithActivitySink(sink ActivitySink) *CreateUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *CreateUserHandler) WithLogger(logger Logger) *CreateUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithLoggerProvider resolves the handler logger from provider.
func (h *CreateUserHandler) WithLoggerProvider(provider LoggerProvider) *CreateUserHandler {
	h.logger = ResolveLogger("users.create", provider, h.logger)
	return h
}

// WithPasswordHasher overrides the password hasher.
func (h *CreateUserHandler) WithPasswordHasher(hasher PasswordHasher) *CreateUserHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

func (h *CreateUserHandler) Execute(ctx context.Context, event CreateUserMessage) error {
	_, err := h.Create(ctx, event)
	return err
}

// Create runs the command and returns the stored user.
func (h *CreateUserHandler) Create(ctx context.Context, event CreateUserMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user creation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CreateUserHandler) execute(ctx context.Context, event CreateUserMessage) (*User, error) {
	if err := event.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid user payload")
	}

	actor := actorFor(ctx, event.Actor)

	// only admins pick the role and active flag, anyone else gets the defaults
	if !actor.IsSystem() && actor.Role != RoleAdmin {
		event.Role = ""
		event.Active = nil
	}

	role := event.Role
	if role == "" {
		role = RoleUser
	}

	if !actor.IsSystem() && (!actor.Role.CanCreateUsers() || !actor.Role.CanManage(role)) {
		return nil, withMetadata(ErrForbidden, map[string]any{
			"action": "users.create",
			"role":   string(role),
		})
	}

	active := true
	if event.Active != nil {
		active = *event.Active
	}

	user := &User{
		Name:   event.Name,
		Email:  normalizeEmail(event.Email),
		Role:   role,
		Active: active,
	}

	if event.UseHashid {
		if id, err := hashid.NewUUID(user.Email); err == nil {
			user.ID = id
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var created *User
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		taken, err := h.repo.Users().EmailInUseTx(ctx, tx, user.Email, uuid.Nil)
		if err != nil {
			return err
		}
		if taken {
			return withMetadata(ErrEmailTaken, map[string]any{"email": user.Email})
		}

		hash, err := h.hasher.HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}
		user.PasswordHash = hash

		if created, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user creation transaction failed")
	}

	if created == nil {
		created = user
	}

	h.record(ctx, ActivityEvent{
		EventType: ActivityEventUserCreated,
		Actor:     actor,
		UserID:    created.ID.String(),
		Metadata: map[string]any{
			"name":  created.Name,
			"email": created.Email,
			"role":  string(created.Role),
		},
	})

	return created, nil
}
