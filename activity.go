package users

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventUserCreated         ActivityEventType = "user.created"
	ActivityEventUserProfileUpdated  ActivityEventType = "user.profile.updated"
	ActivityEventUserPasswordUpdated ActivityEventType = "user.password.updated"
	ActivityEventUserDeleted         ActivityEventType = "user.deleted"
)

const (
	ActorTypeUser   = "user"
	ActorTypeSystem = "system"
)

// ActorRef identifies who/what triggered an action.
type ActorRef struct {
	ID   string
	Type string
	Role UserRole
}

// SystemActor is used by trusted callers such as the CLI. It bypasses role
// checks.
func SystemActor() ActorRef {
	return ActorRef{ID: ActorTypeSystem, Type: ActorTypeSystem, Role: RoleAdmin}
}

// ActorFromUser builds an actor reference for an authenticated user.
func ActorFromUser(u *User) ActorRef {
	if u == nil {
		return ActorRef{}
	}
	return ActorRef{ID: u.ID.String(), Type: ActorTypeUser, Role: u.Role}
}

// IsSystem reports whether the actor is a trusted system caller.
func (a ActorRef) IsSystem() bool {
	return a.Type == ActorTypeSystem
}

// Is reports whether the actor is the user with the given id.
func (a ActorRef) Is(id uuid.UUID) bool {
	return a.Type != ActorTypeSystem && a.ID != "" && a.ID == id.String()
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// ActivitySinks fans an event out to every sink, returning the first error.
type ActivitySinks []ActivitySink

func (s ActivitySinks) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, sink := range s {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// activityRecorder is embedded by command handlers.
type activityRecorder struct {
	activity ActivitySink
	logger   Logger
}

func (r activityRecorder) record(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := normalizeActivitySink(r.activity).Record(ctx, event); err != nil {
		r.getLogger().Warn("activity sink error",
			"event", string(event.EventType),
			"user_id", event.UserID,
			"error", err,
		)
	}
}

func (r activityRecorder) getLogger() Logger {
	if r.logger != nil {
		return r.logger
	}
	return defaultLogger()
}
