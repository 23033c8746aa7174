// Package client implements the client-side library described in
// SPEC_FULL.md §4.1/§6: attach to the transport region, send a framed
// request, and wait for its correlated response. A per-process semaphore
// serializes concurrent goroutines before any of them touch the
// cross-process mutex, since §5 requires multi-threaded clients to
// serialize their own access to the shared segment.
package client

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/v8codecache/ircache/pkg/ircache"
	"github.com/v8codecache/ircache/pkg/transport"
)

// Client is a connection to a running server's transport region.
//
// The region has one response slot shared by every attached process, and
// Client serializes only the goroutines of its own process. With more than
// one client process attached, a response can be replaced by another
// client's before it is read, and WaitResponse then fails with
// transport.ErrCorrelationMismatch.
type Client struct {
	region    *transport.Region
	sem       *semaphore.Weighted
	nextMsgID uint32
}

// Connect attaches to the shared memory region named name (spec §4.1's
// Attach). Use transport.SharedMemoryName for the canonical default.
func Connect(name string) (*Client, error) {
	region, err := transport.Attach(name)
	if err != nil {
		return nil, fmt.Errorf("client: connect: %w", err)
	}
	return &Client{region: region, sem: semaphore.NewWeighted(1)}, nil
}

// Close detaches from the transport region. It does not tear it down —
// only the server does that.
func (c *Client) Close() error {
	return c.region.Close()
}

func (c *Client) nextMessageID() uint32 {
	return atomic.AddUint32(&c.nextMsgID, 1)
}

// sendFireAndForget sends payload to routeName and returns as soon as the
// server has been notified; it does not wait for any response.
func (c *Client) sendFireAndForget(ctx context.Context, routeName string, payload []byte) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)

	return c.region.SendRequest(c.nextMessageID(), transport.RouteHash(routeName), payload)
}

// sendRequestResponse sends payload to routeName and returns the raw
// response payload.
func (c *Client) sendRequestResponse(ctx context.Context, routeName string, payload []byte) ([]byte, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	messageID := c.nextMessageID()
	if err := c.region.SendRequest(messageID, transport.RouteHash(routeName), payload); err != nil {
		return nil, err
	}

	buf := make([]byte, transport.MaxMessageSize)
	n, err := c.region.WaitResponse(messageID, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// CreateUser issues user/create (spec §6, demo route; no response).
func (c *Client) CreateUser(ctx context.Context, username, email string) error {
	payload := make([]byte, 64+128)
	putCString(payload[:64], username)
	putCString(payload[64:], email)
	return c.sendFireAndForget(ctx, ircache.RouteUserCreate, payload)
}

// GetUser issues user/get (spec §6, demo route; no response).
func (c *Client) GetUser(ctx context.Context, username string) error {
	payload := make([]byte, 64)
	putCString(payload, username)
	return c.sendFireAndForget(ctx, ircache.RouteUserGet, payload)
}

// DeleteUser issues user/delete (spec §6, demo route; no response).
func (c *Client) DeleteUser(ctx context.Context, username string) error {
	payload := make([]byte, 64)
	putCString(payload, username)
	return c.sendFireAndForget(ctx, ircache.RouteUserDelete, payload)
}

// AddIRGraph stores graph under functionCodeHash (spec §6's
// function/add_ir_graph; no response).
func (c *Client) AddIRGraph(ctx context.Context, functionCodeHash string, graph []byte) error {
	payload := ircache.EncodeAddIRGraphRequest(ircache.AddIRGraphRequest{
		FunctionCodeHash: functionCodeHash,
		Graph:            graph,
	})
	return c.sendFireAndForget(ctx, ircache.RouteAddIRGraph, payload)
}

// GetIRGraph fetches the graph stored under functionCodeHash (spec §6's
// function/get_ir_graph). ok is false and err is nil for a miss that the
// server reported cleanly (success=false in the response).
func (c *Client) GetIRGraph(ctx context.Context, functionCodeHash string) (graph []byte, ok bool, err error) {
	payload := ircache.EncodeGetIRGraphRequest(ircache.GetIRGraphRequest{FunctionCodeHash: functionCodeHash})
	raw, err := c.sendRequestResponse(ctx, ircache.RouteGetIRGraph, payload)
	if err != nil {
		return nil, false, err
	}

	resp, err := ircache.DecodeGetIRGraphResponse(raw)
	if err != nil {
		return nil, false, fmt.Errorf("client: decode get_ir_graph response: %w", err)
	}
	if !resp.Success {
		return nil, false, nil
	}
	return resp.SerializedGraph, true, nil
}

func putCString(dst []byte, s string) {
	for i := range dst {
		dst[i] = 0
	}
	copy(dst, s)
}
