package evaluator

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akodkod/konsol/internal/hostruntime"
	"github.com/akodkod/konsol/internal/sessionstore"
)

func TestEvalPersistsBindingsAcrossCalls(t *testing.T) {
	store := sessionstore.New(hostruntime.NewLocalRuntime())
	sess, protoErr := store.CreateSession(context.Background())
	require.Nil(t, protoErr)

	ev := New(hostruntime.NewLocalRuntime())

	res, err := ev.Run(context.Background(), sess, "x = 123")
	require.NoError(t, err)
	require.Nil(t, res.Exception)
	require.Equal(t, "123", res.ValueRendering)
	require.Equal(t, "Integer", res.ValueTypeName)

	res, err = ev.Run(context.Background(), sess, "x + 1")
	require.NoError(t, err)
	require.Nil(t, res.Exception)
	require.Equal(t, "124", res.ValueRendering)
	require.Equal(t, "Integer", res.ValueTypeName)
}

func TestEvalCapturesStdout(t *testing.T) {
	store := sessionstore.New(hostruntime.NewLocalRuntime())
	sess, protoErr := store.CreateSession(context.Background())
	require.Nil(t, protoErr)

	ev := New(hostruntime.NewLocalRuntime())
	res, err := ev.Run(context.Background(), sess, `puts("hello")`)
	require.NoError(t, err)
	require.Nil(t, res.Exception)
	require.Equal(t, "hello\n", res.Stdout)
	require.Empty(t, res.Stderr)
}

func TestEvalCapturesStderrViaWarn(t *testing.T) {
	store := sessionstore.New(hostruntime.NewLocalRuntime())
	sess, protoErr := store.CreateSession(context.Background())
	require.Nil(t, protoErr)

	ev := New(hostruntime.NewLocalRuntime())
	res, err := ev.Run(context.Background(), sess, `warn("uh oh")`)
	require.NoError(t, err)
	require.Nil(t, res.Exception)
	require.Equal(t, "uh oh\n", res.Stderr)
}

func TestEvalCapturesExceptionFromRaise(t *testing.T) {
	store := sessionstore.New(hostruntime.NewLocalRuntime())
	sess, protoErr := store.CreateSession(context.Background())
	require.Nil(t, protoErr)

	ev := New(hostruntime.NewLocalRuntime())
	res, err := ev.Run(context.Background(), sess, `raise("boom")`)
	require.NoError(t, err)
	require.NotNil(t, res.Exception)
	require.Equal(t, "RuntimeError", res.Exception.ClassName)
	require.Equal(t, "boom", res.Exception.Message)
	require.Empty(t, res.Exception.Backtrace)
}

func TestEvalCapturesFaultWithBacktrace(t *testing.T) {
	store := sessionstore.New(hostruntime.NewLocalRuntime())
	sess, protoErr := store.CreateSession(context.Background())
	require.Nil(t, protoErr)

	ev := New(hostruntime.NewLocalRuntime())
	res, err := ev.Run(context.Background(), sess, "1 / 0")
	require.NoError(t, err)
	require.NotNil(t, res.Exception)
	require.Equal(t, "ZeroDivisionError", res.Exception.ClassName)
	require.NotEmpty(t, res.Exception.Backtrace)
}

func TestEvalUndefinedNameIsNameError(t *testing.T) {
	store := sessionstore.New(hostruntime.NewLocalRuntime())
	sess, protoErr := store.CreateSession(context.Background())
	require.Nil(t, protoErr)

	ev := New(hostruntime.NewLocalRuntime())
	res, err := ev.Run(context.Background(), sess, "doesnotexist")
	require.NoError(t, err)
	require.NotNil(t, res.Exception)
	require.Equal(t, "NameError", res.Exception.ClassName)
}

func TestEvalStreamsAreRestoredAfterException(t *testing.T) {
	store := sessionstore.New(hostruntime.NewLocalRuntime())
	sess, protoErr := store.CreateSession(context.Background())
	require.Nil(t, protoErr)

	ev := New(hostruntime.NewLocalRuntime())
	origStdout, origStderr := os.Stdout, os.Stderr
	_, err := ev.Run(context.Background(), sess, `raise("boom")`)
	require.NoError(t, err)

	// os.Stdout/os.Stderr must be the same files they were before the
	// raising evaluation, and a second evaluation must behave normally.
	require.Same(t, origStdout, os.Stdout)
	require.Same(t, origStderr, os.Stderr)
	res, err := ev.Run(context.Background(), sess, `puts("still working")`)
	require.NoError(t, err)
	require.Equal(t, "still working\n", res.Stdout)
}

func TestEvalStringConcatenation(t *testing.T) {
	store := sessionstore.New(hostruntime.NewLocalRuntime())
	sess, protoErr := store.CreateSession(context.Background())
	require.Nil(t, protoErr)

	ev := New(hostruntime.NewLocalRuntime())
	res, err := ev.Run(context.Background(), sess, `"hello " + "world"`)
	require.NoError(t, err)
	require.Nil(t, res.Exception)
	require.Equal(t, "hello world", res.ValueRendering)
	require.Equal(t, "String", res.ValueTypeName)
}
