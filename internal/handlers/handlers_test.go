package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akodkod/konsol/internal/evaluator"
	"github.com/akodkod/konsol/internal/hostruntime"
	"github.com/akodkod/konsol/internal/protocol"
	"github.com/akodkod/konsol/internal/sessionstore"
)

func newTestHandlers() (*Handlers, *sessionstore.Store) {
	store := sessionstore.New(hostruntime.NewLocalRuntime())
	ev := evaluator.New(hostruntime.NewLocalRuntime())
	return New(store, ev, nil), store
}

func TestInitializeReturnsCapabilities(t *testing.T) {
	h, _ := newTestHandlers()
	res, err := h.Initialize(context.Background(), protocol.InitializeParams{})
	require.Nil(t, err)
	require.False(t, res.Capabilities.SupportsInterrupt)
	require.Equal(t, "konsol", res.ServerInfo.Name)
}

func TestInitializeToleratesUnparseableClientVersion(t *testing.T) {
	h, _ := newTestHandlers()
	res, err := h.Initialize(context.Background(), protocol.InitializeParams{
		ClientInfo: &protocol.ClientInfo{Name: "editor", Version: "not-a-semver"},
	})
	require.Nil(t, err)
	require.False(t, res.Capabilities.SupportsInterrupt)
}

func TestSessionCreateThenEvalPersistsState(t *testing.T) {
	h, _ := newTestHandlers()

	created, err := h.SessionCreate(context.Background())
	require.Nil(t, err)
	require.NotEmpty(t, created.SessionID)

	res, err := h.Eval(context.Background(), protocol.EvalParams{SessionID: created.SessionID, Code: "x = 123"})
	require.Nil(t, err)
	require.Equal(t, "123", res.ValueRendering)

	res, err = h.Eval(context.Background(), protocol.EvalParams{SessionID: created.SessionID, Code: "x + 1"})
	require.Nil(t, err)
	require.Equal(t, "124", res.ValueRendering)
}

func TestEvalUnknownSessionReturnsSessionNotFound(t *testing.T) {
	h, _ := newTestHandlers()
	_, err := h.Eval(context.Background(), protocol.EvalParams{SessionID: "00000000-0000-0000-0000-000000000000", Code: "1"})
	require.NotNil(t, err)
	require.Equal(t, protocol.CodeSessionNotFound, err.Code)
}

func TestEvalBusySessionReturnsSessionBusy(t *testing.T) {
	h, _ := newTestHandlers()
	created, err := h.SessionCreate(context.Background())
	require.Nil(t, err)

	sess, ok := h.Store.Get(created.SessionID)
	require.True(t, ok)
	require.True(t, sess.TryAcquire())

	_, evalErr := h.Eval(context.Background(), protocol.EvalParams{SessionID: created.SessionID, Code: "1"})
	require.NotNil(t, evalErr)
	require.Equal(t, protocol.CodeSessionBusy, evalErr.Code)

	sess.Release()
}

func TestEvalEmitsStatusNotifications(t *testing.T) {
	store := sessionstore.New(hostruntime.NewLocalRuntime())
	ev := evaluator.New(hostruntime.NewLocalRuntime())

	var seen []protocol.Notification
	h := New(store, ev, func(n protocol.Notification) error {
		seen = append(seen, n)
		return nil
	})

	created, err := h.SessionCreate(context.Background())
	require.Nil(t, err)

	_, evalErr := h.Eval(context.Background(), protocol.EvalParams{SessionID: created.SessionID, Code: "1"})
	require.Nil(t, evalErr)

	require.Len(t, seen, 2)
	require.Equal(t, protocol.MethodNotifyStatus, seen[0].Method)
	first := seen[0].Params.(protocol.StatusNotificationParams)
	require.True(t, first.Busy)
	second := seen[1].Params.(protocol.StatusNotificationParams)
	require.False(t, second.Busy)
}

func TestInterruptMarksBusySessionInterrupted(t *testing.T) {
	h, _ := newTestHandlers()
	created, err := h.SessionCreate(context.Background())
	require.Nil(t, err)

	sess, ok := h.Store.Get(created.SessionID)
	require.True(t, ok)
	require.True(t, sess.TryAcquire())

	res, interruptErr := h.Interrupt(context.Background(), protocol.SessionIDParams{SessionID: created.SessionID})
	require.Nil(t, interruptErr)
	require.True(t, res.Success)
	require.Equal(t, sessionstore.StateInterrupted, sess.State())
}

func TestInterruptUnknownSessionReturnsSessionNotFound(t *testing.T) {
	h, _ := newTestHandlers()
	_, err := h.Interrupt(context.Background(), protocol.SessionIDParams{SessionID: "missing"})
	require.NotNil(t, err)
	require.Equal(t, protocol.CodeSessionNotFound, err.Code)
}

func TestShutdownInvalidatesStore(t *testing.T) {
	h, store := newTestHandlers()
	_, err := h.SessionCreate(context.Background())
	require.Nil(t, err)
	require.Equal(t, 1, store.Count())

	shutdownErr := h.Shutdown(context.Background())
	require.Nil(t, shutdownErr)
	require.Equal(t, 0, store.Count())
}

func TestCancelRequestRecordsAttemptAgainstSession(t *testing.T) {
	h, _ := newTestHandlers()
	created, err := h.SessionCreate(context.Background())
	require.Nil(t, err)

	cancelErr := h.CancelRequest(context.Background(), protocol.CancelRequestParams{ID: protocol.NewIntID(1)}, created.SessionID)
	require.Nil(t, cancelErr)

	sess, ok := h.Store.Get(created.SessionID)
	require.True(t, ok)
	require.Equal(t, 1, sess.CancelAttempts())
}

func TestCancelRequestNoopWhenNoInFlightSession(t *testing.T) {
	h, _ := newTestHandlers()
	err := h.CancelRequest(context.Background(), protocol.CancelRequestParams{ID: protocol.NewIntID(1)}, "")
	require.Nil(t, err)
}
