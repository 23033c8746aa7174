package ircache

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/v8codecache/ircache/pkg/cache"
	"github.com/v8codecache/ircache/pkg/router"
	"github.com/v8codecache/ircache/pkg/transport"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestService(t *testing.T) (*Service, *router.Router) {
	t.Helper()
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.bin"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	svc := NewService(c, testLogger())
	r := router.New(testLogger(), transport.RouteHash)
	svc.Register(r)
	return svc, r
}

func TestAddThenGetIRGraph(t *testing.T) {
	_, r := newTestService(t)

	addPayload := EncodeAddIRGraphRequest(AddIRGraphRequest{
		FunctionCodeHash: "HASH_A",
		Graph:            bytesOfLen(1024),
	})
	_, wantsResponse, known := r.Dispatch(transport.RouteHash(RouteAddIRGraph), addPayload, 1)
	require.True(t, known)
	require.False(t, wantsResponse)

	getPayload := EncodeGetIRGraphRequest(GetIRGraphRequest{FunctionCodeHash: "HASH_A"})
	resp, wantsResponse, known := r.Dispatch(transport.RouteHash(RouteGetIRGraph), getPayload, 2)
	require.True(t, known)
	require.True(t, wantsResponse)

	decoded, err := DecodeGetIRGraphResponse(resp)
	require.NoError(t, err)
	require.True(t, decoded.Success)
	require.Equal(t, bytesOfLen(1024), decoded.SerializedGraph)
}

func TestGetIRGraphMissing(t *testing.T) {
	_, r := newTestService(t)

	getPayload := EncodeGetIRGraphRequest(GetIRGraphRequest{FunctionCodeHash: "MISSING"})
	resp, wantsResponse, known := r.Dispatch(transport.RouteHash(RouteGetIRGraph), getPayload, 1)
	require.True(t, known)
	require.True(t, wantsResponse)

	decoded, err := DecodeGetIRGraphResponse(resp)
	require.NoError(t, err)
	require.False(t, decoded.Success)
	require.Equal(t, uint32(0), uint32(len(decoded.SerializedGraph)))
	require.Equal(t, errNotFoundMessage, decoded.ErrorMessage)
}

func TestGetIRLegacyRoundTrip(t *testing.T) {
	_, r := newTestService(t)

	graph := bytesOfLen(300)
	addPayload := EncodeAddIRGraphRequest(AddIRGraphRequest{FunctionCodeHash: "HASH_B", Graph: graph})
	r.Dispatch(transport.RouteHash(RouteAddIRGraph), addPayload, 1)

	getPayload := EncodeGetIRGraphRequest(GetIRGraphRequest{FunctionCodeHash: "HASH_B"})
	resp, wantsResponse, known := r.Dispatch(transport.RouteHash(RouteGetIRLegacy), getPayload, 2)
	require.True(t, known)
	require.True(t, wantsResponse)
	require.Equal(t, byte(1), resp[0])

	decoded, err := decodeLegacyGraph(resp[1:])
	require.NoError(t, err)
	require.Equal(t, graph, decoded)
}

func TestGetIRGraphUndersizePayloadGetsMalformedResponse(t *testing.T) {
	_, r := newTestService(t)

	resp, wantsResponse, known := r.Dispatch(transport.RouteHash(RouteGetIRGraph), []byte("too short"), 1)
	require.True(t, known)
	require.True(t, wantsResponse)
	require.NotEmpty(t, resp)

	decoded, err := DecodeGetIRGraphResponse(resp)
	require.NoError(t, err)
	require.False(t, decoded.Success)
	require.Equal(t, MalformedRequestMessage, decoded.ErrorMessage)
}

func TestGetIRLegacyUndersizePayloadGetsLegacyMiss(t *testing.T) {
	_, r := newTestService(t)

	resp, wantsResponse, known := r.Dispatch(transport.RouteHash(RouteGetIRLegacy), []byte("too short"), 1)
	require.True(t, known)
	require.True(t, wantsResponse)
	require.Equal(t, []byte{0}, resp)
}

func TestUserCreateThenDeleteNoResponse(t *testing.T) {
	svc, r := newTestService(t)

	payload := make([]byte, usernameSize+emailSize)
	putCString(payload[:usernameSize], "alice")
	putCString(payload[usernameSize:], "alice@x")

	_, wantsResponse, known := r.Dispatch(transport.RouteHash(RouteUserCreate), payload, 1)
	require.True(t, known)
	require.False(t, wantsResponse)

	email, ok := svc.users.get("alice")
	require.True(t, ok)
	require.Equal(t, "alice@x", email)

	deletePayload := make([]byte, usernameSize)
	putCString(deletePayload, "alice")
	r.Dispatch(transport.RouteHash(RouteUserDelete), deletePayload, 2)

	_, ok = svc.users.get("alice")
	require.False(t, ok)
}

func bytesOfLen(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}
