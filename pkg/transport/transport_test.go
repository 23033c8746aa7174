package transport

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testRegionName(t *testing.T) string {
	return fmt.Sprintf("/ipc_router_test_%d_%d", os.Getpid(), time.Now().UnixNano())
}

func TestCreateAttachTeardown(t *testing.T) {
	name := testRegionName(t)

	srv, err := Create(name)
	require.NoError(t, err)

	cli, err := Attach(name)
	require.NoError(t, err)

	require.NoError(t, cli.Close())
	require.NoError(t, srv.Teardown())

	_, err = Attach(name)
	require.ErrorIs(t, err, ErrNotAttached)
}

func TestRequestResponseRoundTrip(t *testing.T) {
	name := testRegionName(t)

	srv, err := Create(name)
	require.NoError(t, err)
	defer srv.Teardown()

	cli, err := Attach(name)
	require.NoError(t, err)
	defer cli.Close()

	done := make(chan error, 1)
	go func() {
		if err := srv.WaitForData(); err != nil {
			done <- err
			return
		}
		frame, err := srv.ReadRequest()
		if err != nil {
			done <- err
			return
		}
		srv.ClearMessage()
		if err := srv.PostResponse(frame.MessageID, []byte("pong")); err != nil {
			done <- err
			return
		}
		done <- srv.ReleaseMutex()
	}()

	routeHash := RouteHash("function/get_ir_graph")
	require.NoError(t, cli.SendRequest(1, routeHash, []byte("ping")))

	buf := make([]byte, 64)
	n, err := cli.WaitResponse(1, buf)
	require.NoError(t, err)
	require.Equal(t, "pong", string(buf[:n]))

	require.NoError(t, <-done)
}

func TestSendRequestBufferBusy(t *testing.T) {
	name := testRegionName(t)

	srv, err := Create(name)
	require.NoError(t, err)
	defer srv.Teardown()

	cli, err := Attach(name)
	require.NoError(t, err)
	defer cli.Close()

	// Simulate an unconsumed message already occupying the slot, leaving
	// mutex back at its initial value of 1 so SendRequest can acquire it
	// and then observe the slot is busy.
	require.NoError(t, srv.mutex.Wait())
	srv.setBool(offHasMessage, true)
	require.NoError(t, srv.mutex.Post())

	err = cli.SendRequest(1, RouteHash("user/create"), []byte("x"))
	require.ErrorIs(t, err, ErrBufferBusy)
}

func TestSendRequestOversizeMessage(t *testing.T) {
	name := testRegionName(t)

	srv, err := Create(name)
	require.NoError(t, err)
	defer srv.Teardown()

	cli, err := Attach(name)
	require.NoError(t, err)
	defer cli.Close()

	payload := make([]byte, MaxMessageSize)
	err = cli.SendRequest(1, RouteHash("function/add_ir_graph"), payload)
	require.ErrorIs(t, err, ErrOversizeMessage)

	// The slot must not have been mutated (spec §7: OversizeMessage leaves
	// has_message untouched).
	require.False(t, srv.HasMessage())
}

func TestSendRequestExactMaxSizeSucceeds(t *testing.T) {
	name := testRegionName(t)

	srv, err := Create(name)
	require.NoError(t, err)
	defer srv.Teardown()

	cli, err := Attach(name)
	require.NoError(t, err)
	defer cli.Close()

	payload := make([]byte, MaxMessageSize-HeaderSize)
	require.NoError(t, cli.SendRequest(1, RouteHash("function/add_ir_graph"), payload))
	require.True(t, srv.HasMessage())
}

func TestWaitResponseCorrelationMismatch(t *testing.T) {
	name := testRegionName(t)

	srv, err := Create(name)
	require.NoError(t, err)
	defer srv.Teardown()

	cli, err := Attach(name)
	require.NoError(t, err)
	defer cli.Close()

	require.NoError(t, srv.PostResponse(42, []byte("hi")))

	buf := make([]byte, 16)
	_, err = cli.WaitResponse(7, buf)
	require.ErrorIs(t, err, ErrCorrelationMismatch)
}

func TestWaitResponseBufferTooSmall(t *testing.T) {
	name := testRegionName(t)

	srv, err := Create(name)
	require.NoError(t, err)
	defer srv.Teardown()

	cli, err := Attach(name)
	require.NoError(t, err)
	defer cli.Close()

	require.NoError(t, srv.PostResponse(1, []byte("hello world")))

	buf := make([]byte, 4)
	_, err = cli.WaitResponse(1, buf)
	require.ErrorIs(t, err, ErrBufferTooSmall)
}

func TestFrameEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte("some ir graph bytes")
	frame, err := Encode(9, RouteHash("function/get_ir_graph"), payload)
	require.NoError(t, err)

	decoded, err := Decode(frame)
	require.NoError(t, err)
	require.Equal(t, uint32(9), decoded.MessageID)
	require.Equal(t, payload, decoded.Payload)
}
