package framing

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := []any{
		map[string]any{"jsonrpc": "2.0", "id": float64(1), "method": "initialize"},
		[]any{"a", "b", float64(3)},
		"plain string",
		float64(42),
		nil,
	}

	for _, v := range cases {
		var buf bytes.Buffer
		require.NoError(t, NewWriter(&buf).Write(v))

		got, err := NewReader(&buf).Read()
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestReadIgnoresExtraHeaders(t *testing.T) {
	raw := "Content-Length: 12\r\nContent-Type: application/json\r\nX-Whatever: yes\r\n\r\n{\"a\":\"hi\"}\n\n"
	r := NewReader(bytes.NewBufferString(raw))
	v, err := r.Read()
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": "hi"}, v)
}

func TestReadCountsBytesNotRunes(t *testing.T) {
	// U+1F600 is 4 bytes in UTF-8 but a single JSON string of just that
	// rune plus surrounding quotes is 6 bytes total; exercise the
	// multi-byte-rune counting directly via a payload containing one.
	payload := []byte(`"😀"`)
	raw := []byte("Content-Length: " + strconv.Itoa(len(payload)) + "\r\n\r\n")
	raw = append(raw, payload...)

	r := NewReader(bytes.NewReader(raw))
	v, err := r.Read()
	require.NoError(t, err)
	require.Equal(t, "😀", v)
}

func TestReadMissingLengthHeader(t *testing.T) {
	raw := "Content-Type: application/json\r\n\r\n{}"
	_, err := NewReader(bytes.NewBufferString(raw)).Read()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrFramingError))
}

func TestReadShortPayload(t *testing.T) {
	raw := "Content-Length: 100\r\n\r\n{}"
	_, err := NewReader(bytes.NewBufferString(raw)).Read()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrFramingError))
}

func TestReadMalformedJSON(t *testing.T) {
	raw := "Content-Length: 3\r\n\r\nnot"
	_, err := NewReader(bytes.NewBufferString(raw)).Read()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrParseError))
	require.False(t, errors.Is(err, ErrFramingError))
}

func TestReadEOFAtBoundary(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	_, err := r.Read()
	require.ErrorIs(t, err, io.EOF)
}
