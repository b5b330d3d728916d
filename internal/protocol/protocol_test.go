package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDPreservesNumericVsStringType(t *testing.T) {
	var id ID
	require.NoError(t, json.Unmarshal([]byte(`1`), &id))
	out, err := json.Marshal(id)
	require.NoError(t, err)
	require.JSONEq(t, `1`, string(out))

	require.NoError(t, json.Unmarshal([]byte(`"abc"`), &id))
	out, err = json.Marshal(id)
	require.NoError(t, err)
	require.JSONEq(t, `"abc"`, string(out))
}

func TestIDAbsentMeansNotification(t *testing.T) {
	var id ID
	require.True(t, id.IsAbsent())

	env := Envelope{Method: MethodExit}
	require.True(t, env.IsNotification())

	env2 := Envelope{ID: NewIntID(5), Method: MethodInitialize}
	require.False(t, env2.IsNotification())
}

func TestMethodClassification(t *testing.T) {
	require.True(t, IsKnownMethod(MethodEval))
	require.False(t, IsKnownMethod(Method("bogus")))

	require.True(t, IsNotificationMethod(MethodExit))
	require.True(t, IsNotificationMethod(MethodNotifyStatus))
	require.False(t, IsNotificationMethod(MethodEval))
	require.False(t, IsNotificationMethod(MethodInitialize))
}

func TestEvalParamsFromWireRequiresFields(t *testing.T) {
	_, errResp := EvalParamsFromWire(nil)
	require.NotNil(t, errResp)
	require.Equal(t, CodeInvalidParams, errResp.Code)

	_, errResp = EvalParamsFromWire(json.RawMessage(`{"code":"1+1"}`))
	require.NotNil(t, errResp)

	p, errResp := EvalParamsFromWire(json.RawMessage(`{"session_id":"s1","code":"1+1"}`))
	require.Nil(t, errResp)
	require.Equal(t, "s1", p.SessionID)
	require.Equal(t, "1+1", p.Code)
}

func TestResponseMarshalJSONResultPresence(t *testing.T) {
	success := NewResultResponse(NewIntID(1), nil)
	data, err := json.Marshal(success)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	result, ok := generic["result"]
	require.True(t, ok, "a nil-result success response must still carry a \"result\" key")
	require.Nil(t, result)

	failure := NewErrorResponse(NewIntID(1), NewError(CodeMethodNotFound))
	data, err = json.Marshal(failure)
	require.NoError(t, err)

	var generic2 map[string]any
	require.NoError(t, json.Unmarshal(data, &generic2))
	_, ok = generic2["result"]
	require.False(t, ok, "an error response must not carry a \"result\" key")
}

func TestErrorDefaultMessage(t *testing.T) {
	e := NewError(CodeSessionNotFound)
	require.Equal(t, "session not found", e.Message)
	require.Equal(t, CodeSessionNotFound, e.Code)

	e2 := NewErrorf(CodeSessionNotFound, "session %s not found", "abc")
	require.Equal(t, "session abc not found", e2.Message)
}
