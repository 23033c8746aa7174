// Package router implements the route table and dispatcher of SPEC_FULL.md
// §4.2: a mapping from route identifier (spec §6's 32-bit SHA-256-derived
// hash) to one of three handler shapes, expressed as a tagged variant per
// the redesign note in spec §9 ("Replacing dynamic dispatch in the
// router") instead of the source's polymorphic erased handlers.
package router

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// FireAndForgetHandler handles a variable-length payload with no response
// (spec §4.2's "Variable route").
type FireAndForgetHandler func(payload []byte)

// ResponseHandler handles a variable-length payload and must produce a
// response payload, correlated by messageID (spec §4.2's
// "request/response" handler).
type ResponseHandler func(payload []byte, messageID uint32) []byte

// routeKind tags whether a registered route produces a response. Typed
// and variable routes of the same kind differ only in route.minSize.
type routeKind int

const (
	kindFireAndForget routeKind = iota
	kindResponse
)

type route struct {
	name    string
	kind    routeKind
	minSize int // 0 when the handler does its own size validation
	ff      FireAndForgetHandler
	rr      ResponseHandler
}

// Router maps route hashes to handlers and dispatches decoded messages to
// them (spec §4.2).
type Router struct {
	log                logrus.FieldLogger
	routes             map[uint32]route
	hashFn             func(string) uint32
	undersizeResponder func(routeName string) []byte
}

// New creates an empty router. hashFn derives a route's 32-bit identifier
// from its textual name (transport.RouteHash in production; a router
// package must not import transport to avoid a cycle, so the hash
// function is injected).
func New(log logrus.FieldLogger, hashFn func(string) uint32) *Router {
	return &Router{
		log:    log,
		routes: make(map[uint32]route),
		hashFn: hashFn,
	}
}

// Handle registers a fire-and-forget route: no response is ever produced
// for it (spec §4.2/§6, e.g. user/create, function/add_ir_graph).
func (r *Router) Handle(name string, handler FireAndForgetHandler) {
	r.register(route{name: name, kind: kindFireAndForget, ff: handler})
}

// HandleTyped registers a fixed-size fire-and-forget route. minSize is the
// encoded size of the request shape; messages shorter than minSize are
// logged and dropped before the handler ever runs (spec §4.2's typed-route
// size assertion).
func (r *Router) HandleTyped(name string, minSize int, handler FireAndForgetHandler) {
	r.register(route{name: name, kind: kindFireAndForget, minSize: minSize, ff: handler})
}

// HandleResponse registers a request/response route (spec §4.2/§6, e.g.
// function/get_ir_graph). The handler's return value is posted back to
// the requester correlated by messageID.
func (r *Router) HandleResponse(name string, handler ResponseHandler) {
	r.register(route{name: name, kind: kindResponse, rr: handler})
}

// HandleTypedResponse registers a fixed-size request/response route.
func (r *Router) HandleTypedResponse(name string, minSize int, handler ResponseHandler) {
	r.register(route{name: name, kind: kindResponse, minSize: minSize, rr: handler})
}

// SetUndersizeResponder configures the payload a request/response route
// gets back when it is dropped for being undersize (spec §9's "a client
// waiting on a response must never be stranded"). Without one, Dispatch
// falls back to returning a nil response for that case, same as before
// this existed.
func (r *Router) SetUndersizeResponder(fn func(routeName string) []byte) {
	r.undersizeResponder = fn
}

func (r *Router) register(rt route) {
	hash := r.hashFn(rt.name)
	if existing, ok := r.routes[hash]; ok {
		panic(fmt.Sprintf("router: route hash collision between %q and %q", existing.name, rt.name))
	}
	r.routes[hash] = rt
}

// Dispatch looks up routeHash and invokes the matching handler (spec
// §4.2). For a fire-and-forget route it returns (nil, false, true). For a
// request/response route it returns (response, true, true); an undersize
// payload on such a route returns the configured undersizeResponder's
// reply instead of a nil one, per spec §9's "a client waiting on a
// response must never be stranded" note. On an unknown route hash it
// returns (nil, false, false) — the caller (the server loop) decides how
// to handle the unknown-route hazard noted in spec §9.
func (r *Router) Dispatch(routeHash uint32, payload []byte, messageID uint32) (response []byte, wantsResponse bool, known bool) {
	rt, ok := r.routes[routeHash]
	if !ok {
		r.log.WithField("route_hash", routeHash).Warn("router: unknown route")
		return nil, false, false
	}

	if rt.minSize > 0 && len(payload) < rt.minSize {
		r.log.WithFields(logrus.Fields{
			"route": rt.name, "payload_size": len(payload), "min_size": rt.minSize,
		}).Warn("router: undersize payload, dropping")
		if rt.kind == kindResponse && r.undersizeResponder != nil {
			return r.undersizeResponder(rt.name), true, true
		}
		return nil, rt.kind == kindResponse, true
	}

	switch rt.kind {
	case kindFireAndForget:
		rt.ff(payload)
		return nil, false, true
	case kindResponse:
		return rt.rr(payload, messageID), true, true
	default:
		panic("router: unreachable route kind")
	}
}
