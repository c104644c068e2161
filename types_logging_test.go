package users_test

import (
	"context"
	"errors"
	"testing"

	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type staticProvider struct {
	logger users.Logger
	asked  []string
}

func (p *staticProvider) GetLogger(name string) users.Logger {
	p.asked = append(p.asked, name)
	return p.logger
}

func observed(level zapcore.Level) (users.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return users.NewLoggerFromZap(zap.New(core)), logs
}

func TestResolveLogger(t *testing.T) {
	fromProvider, _ := observed(zapcore.DebugLevel)
	explicit, _ := observed(zapcore.DebugLevel)

	provider := &staticProvider{logger: fromProvider}
	assert.Same(t, fromProvider, users.ResolveLogger("users.list", provider, explicit))
	assert.Equal(t, []string{"users.list"}, provider.asked)

	assert.Same(t, explicit, users.ResolveLogger("users.list", &staticProvider{}, explicit))
	assert.NotNil(t, users.ResolveLogger("users.list", nil, nil))
}

func TestZapProviderNamesLoggers(t *testing.T) {
	base, logs := observed(zapcore.DebugLevel)
	provider := users.NewZapProvider(base)

	provider.GetLogger("users.create").Info("hello", "key", "value")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "users.create", entries[0].LoggerName)
	assert.Equal(t, "value", entries[0].ContextMap()["key"])

	var nilProvider *users.ZapProvider
	assert.Nil(t, nilProvider.GetLogger("x"))
}

func TestNewZapLogger(t *testing.T) {
	for _, format := range []string{"json", "text", "console"} {
		logger, err := users.NewZapLogger(format, "debug")
		require.NoError(t, err, format)
		assert.NotNil(t, logger.WithContext(context.Background()))
	}
}

func TestActivitySinkErrorsAreLogged(t *testing.T) {
	repo, _ := newTestManager(t)
	logger, logs := observed(zapcore.WarnLevel)

	failing := users.ActivitySinkFunc(func(context.Context, users.ActivityEvent) error {
		return errors.New("queue unavailable")
	})

	handler := newCreateHandler(repo, failing).WithLogger(logger)

	_, err := handler.Create(context.Background(), createMessage(users.SystemActor(), "jane@example.com"))
	require.NoError(t, err)

	entries := logs.FilterMessage("activity sink error").All()
	require.Len(t, entries, 1)
	assert.Equal(t, string(users.ActivityEventUserCreated), entries[0].ContextMap()["event"])
}

func TestListUsersLogsWithProvider(t *testing.T) {
	f := newListingFixture(t)
	logger, logs := observed(zapcore.DebugLevel)

	handler := users.NewListUsersHandler(f.repo, nil).
		WithLoggerProvider(users.NewZapProvider(logger))

	_, err := handler.ListUsers(context.Background(), users.SystemActor(), nil)
	require.NoError(t, err)

	entries := logs.FilterMessage("listed users").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "users.list", entries[0].LoggerName)
	assert.EqualValues(t, 3, entries[0].ContextMap()["count"])
}
