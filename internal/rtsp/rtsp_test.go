package rtsp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeSimpleRequest(t *testing.T) {
	data := "GET /info RTSP/1.0\r\nX-Apple-ProtocolVersion: 1\r\nCSeq: 0\r\n\r\n"

	req, n, err := Decode([]byte(data))
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, "GET", req.Method)
	require.Equal(t, "/info", req.Path)

	cseq, ok := req.Headers.Get("CSeq")
	require.True(t, ok)
	require.Equal(t, "0", cseq)
}

func TestDecodeIncomplete(t *testing.T) {
	_, _, err := Decode([]byte("GET /info RTSP/1.0\r\nCSeq: 0\r\n"))
	require.ErrorIs(t, err, ErrIncomplete)
}

func TestDecodeWaitsForBody(t *testing.T) {
	data := "ANNOUNCE rtsp://x RTSP/1.0\r\nContent-Length: 10\r\n\r\n12345"
	_, _, err := Decode([]byte(data))
	require.ErrorIs(t, err, ErrIncomplete)

	full := data + "67890"
	req, n, err := Decode([]byte(full))
	require.NoError(t, err)
	require.Equal(t, len(full), n)
	require.Equal(t, []byte("1234567890"), req.Content)
}

func TestDecodeBadHeader(t *testing.T) {
	_, _, err := Decode([]byte("GET / RTSP/1.0\r\nBadHeaderNoColon\r\n\r\n"))
	require.ErrorIs(t, err, ErrBadFrame)
}

func TestEncodeResponse(t *testing.T) {
	res := NewResponse(StatusOK)
	res.Headers.Set("Test", "Test")

	require.Equal(t, "RTSP/1.0 200 OK\r\nTest: Test\r\n\r\n", string(res.Encode()))
}

func TestResponseStatuses(t *testing.T) {
	require.Equal(t, "RTSP/1.0 400 Bad Request\r\n\r\n", string(NewResponse(StatusBadRequest).Encode()))
	require.Equal(t, "RTSP/1.0 404 Not Found\r\n\r\n", string(NewResponse(StatusNotFound).Encode()))
	require.Equal(t, "RTSP/1.0 405 Method Not Allowed\r\n\r\n", string(NewResponse(StatusMethodNotAllowed).Encode()))
	require.Equal(t, "RTSP/1.0 500 Internal Server Error\r\n\r\n", string(NewResponse(StatusInternalServerError).Encode()))
}
