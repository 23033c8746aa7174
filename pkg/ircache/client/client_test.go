package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/v8codecache/ircache/pkg/cache"
	"github.com/v8codecache/ircache/pkg/ircache"
	"github.com/v8codecache/ircache/pkg/router"
	"github.com/v8codecache/ircache/pkg/transport"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// runFakeServer mirrors the event loop in pkg/ircache/server closely
// enough to exercise the client library end to end. It stops on its own
// stop channel rather than on the process-wide ircache shutdown flag,
// which is never reset once set.
func runFakeServer(t *testing.T, region *transport.Region, svc *ircache.Service, r *router.Router, stop <-chan struct{}, done chan<- struct{}) {
	t.Helper()
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := region.WaitForData(); err != nil {
			return
		}
		if !region.HasMessage() {
			_ = region.ReleaseMutex()
			continue
		}

		frame, err := region.ReadRequest()
		region.ClearMessage()
		if err != nil {
			_ = region.ReleaseMutex()
			continue
		}

		resp, wantsResponse, known := r.Dispatch(frame.RouteHash, frame.Payload, frame.MessageID)
		if !known {
			_ = region.PostResponse(frame.MessageID, ircache.EncodeUnknownRouteResponse())
		} else if wantsResponse {
			_ = region.PostResponse(frame.MessageID, resp)
		}

		_ = region.ReleaseMutex()
	}
}

func newTestServer(t *testing.T) (name string, stop chan struct{}) {
	t.Helper()

	name = fmt.Sprintf("/ipc_client_test_%d_%d", os.Getpid(), time.Now().UnixNano())

	region, err := transport.Create(name)
	require.NoError(t, err)

	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.bin"), testLogger())
	require.NoError(t, err)

	svc := ircache.NewService(c, testLogger())
	r := router.New(testLogger(), transport.RouteHash)
	svc.Register(r)

	stop = make(chan struct{})
	done := make(chan struct{})
	go runFakeServer(t, region, svc, r, stop, done)

	t.Cleanup(func() {
		close(stop)
		_ = region.UnblockForShutdown()
		<-done
		_ = c.Close()
		_ = region.Teardown()
	})

	return name, stop
}

func TestClientAddAndGetIRGraph(t *testing.T) {
	name, _ := newTestServer(t)

	cli, err := Connect(name)
	require.NoError(t, err)
	defer cli.Close()

	ctx := context.Background()
	graph := []byte("opaque ir graph bytes")

	require.NoError(t, cli.AddIRGraph(ctx, "HASH_A", graph))

	got, ok, err := cli.GetIRGraph(ctx, "HASH_A")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, graph, got)
}

func TestClientGetIRGraphMissing(t *testing.T) {
	name, _ := newTestServer(t)

	cli, err := Connect(name)
	require.NoError(t, err)
	defer cli.Close()

	got, ok, err := cli.GetIRGraph(context.Background(), "MISSING")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, got)
}

func TestClientUserLifecycleNoResponse(t *testing.T) {
	name, _ := newTestServer(t)

	cli, err := Connect(name)
	require.NoError(t, err)
	defer cli.Close()

	ctx := context.Background()
	require.NoError(t, cli.CreateUser(ctx, "alice", "alice@x"))
	require.NoError(t, cli.GetUser(ctx, "alice"))
	require.NoError(t, cli.DeleteUser(ctx, "alice"))

	// The loop must still be ready to answer a request/response route
	// after processing three fire-and-forget requests in a row.
	require.NoError(t, cli.AddIRGraph(ctx, "HASH_B", []byte("x")))
	_, ok, err := cli.GetIRGraph(ctx, "HASH_B")
	require.NoError(t, err)
	require.True(t, ok)
}
