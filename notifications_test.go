package users_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outbox struct {
	sent []users.MailMessage
	fail bool
}

func (o *outbox) Send(_ context.Context, msg users.MailMessage) error {
	if o.fail {
		return errors.New("smtp down")
	}
	o.sent = append(o.sent, msg)
	return nil
}

func notificationConfig() *users.FileConfig {
	cfg := users.DefaultConfig()
	cfg.App.Name = "Backoffice"
	cfg.Notifications.From = "ops@example.com"
	cfg.Notifications.SystemAdmins = []string{"root@example.com", "not-an-email", "Jane@example.com"}
	return cfg
}

func createdEvent() users.ActivityEvent {
	return users.ActivityEvent{
		EventType: users.ActivityEventUserCreated,
		Actor:     users.SystemActor(),
		UserID:    "u-1",
		Metadata: map[string]any{
			"name":  "Jane Doe",
			"email": "jane@example.com",
			"role":  "manager",
		},
	}
}

func TestNotificationSinkUserCreated(t *testing.T) {
	box := &outbox{}
	sink := users.NewNotificationSink(notificationConfig(), box).WithLogger(users.NopLogger())

	assert.Equal(t, []string{"root@example.com", "jane@example.com"}, sink.Admins())

	require.NoError(t, sink.Record(context.Background(), createdEvent()))

	// the new user is also an admin and only gets the welcome mail
	require.Len(t, box.sent, 2)

	welcome := box.sent[0]
	assert.Equal(t, "ops@example.com", welcome.From)
	assert.Equal(t, "jane@example.com", welcome.To)
	assert.Equal(t, "Welcome to Backoffice, Jane Doe", welcome.Subject)
	assert.Contains(t, welcome.Body, "granted the manager role")

	alert := box.sent[1]
	assert.Equal(t, "root@example.com", alert.To)
	assert.Equal(t, "[Backoffice] New user jane@example.com", alert.Subject)
	assert.True(t, strings.HasSuffix(alert.Body, "by system."))
}

func TestNotificationSinkKeepsPlainText(t *testing.T) {
	box := &outbox{}
	sink := users.NewNotificationSink(notificationConfig(), box).WithLogger(users.NopLogger())

	event := createdEvent()
	event.Metadata["name"] = "O'Brien & Co"
	event.Metadata["email"] = "obrien@example.com"

	require.NoError(t, sink.Record(context.Background(), event))
	require.Len(t, box.sent, 3)

	assert.Equal(t, "Welcome to Backoffice, O'Brien & Co", box.sent[0].Subject)
	assert.Contains(t, box.sent[0].Body, "Hi O'Brien & Co,")
	assert.Contains(t, box.sent[1].Body, "for O'Brien & Co <obrien@example.com>")
	assert.NotContains(t, box.sent[1].Body, "&amp;")
}

func TestNotificationSinkIgnoresOtherEvents(t *testing.T) {
	box := &outbox{}
	sink := users.NewNotificationSink(notificationConfig(), box)

	require.NoError(t, sink.Record(context.Background(), users.ActivityEvent{
		EventType: users.ActivityEventUserDeleted,
		UserID:    "u-1",
	}))
	assert.Empty(t, box.sent)
}

func TestNotificationSinkMailerFailure(t *testing.T) {
	sink := users.NewNotificationSink(notificationConfig(), &outbox{fail: true}).WithLogger(users.NopLogger())

	err := sink.Record(context.Background(), createdEvent())
	require.Error(t, err)
}

func TestNotificationSinkWithCreateHandler(t *testing.T) {
	repo, _ := newTestManager(t)
	box := &outbox{}

	handler := newCreateHandler(repo, users.ActivitySinks{
		users.NewNotificationSink(notificationConfig(), box).WithLogger(users.NopLogger()),
		&recordingSink{},
	})

	msg := createMessage(users.SystemActor(), "new@example.com")
	_, err := handler.Create(context.Background(), msg)
	require.NoError(t, err)

	require.Len(t, box.sent, 3)
	assert.Equal(t, "new@example.com", box.sent[0].To)
	assert.NotContains(t, box.sent[0].Body, "granted")
}

func TestLogMailer(t *testing.T) {
	m := users.LogMailer{Logger: users.NopLogger()}
	assert.NoError(t, m.Send(context.Background(), users.MailMessage{To: "a@example.com"}))
}
