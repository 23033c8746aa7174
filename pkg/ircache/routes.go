// Package ircache binds pkg/router and pkg/cache together into this
// service's concrete route table (SPEC_FULL.md §4/§6): the demo user
// handlers, the IR graph store/fetch pair, and the legacy bit-packed
// fetch variant. It owns no transport or event-loop code of its own —
// that lives in pkg/ircache/server and pkg/ircache/client.
package ircache

// Route names, hashed by transport.RouteHash to produce the 32-bit
// dispatch key (spec §6's canonical route table).
const (
	RouteUserCreate  = "user/create"
	RouteUserGet     = "user/get"
	RouteUserDelete  = "user/delete"
	RouteAddIRGraph  = "function/add_ir_graph"
	RouteGetIRGraph  = "function/get_ir_graph"
	RouteGetIRLegacy = "function/get_ir"
)

// errNotFoundMessage is the fixed error_message payload for a cache miss
// on function/get_ir_graph (spec §8 scenario 2 — this exact string is a
// tested property, preserved verbatim from the original service).
const errNotFoundMessage = "Fonction non trouvée dans le cache"

// errorMessageSize is the fixed width of the response's error_message
// field (spec §6).
const errorMessageSize = 128

// functionHashSize is the fixed width of a function_code_hash field
// (spec §6).
const functionHashSize = 256

// UnknownRouteMessage is the error_message carried by the canned
// response the server loop posts for an unrecognized route hash on a
// request/response channel, resolving the hang hazard noted in spec §9
// (DESIGN.md's Open Question #4).
const UnknownRouteMessage = "unknown route"

// EncodeUnknownRouteResponse builds the canned response for an
// unrecognized route hash, reusing the get_ir_graph success/error_message
// response shape. function/get_ir's own responses use a different format
// (a status byte followed by a varint-framed graph).
func EncodeUnknownRouteResponse() []byte {
	return EncodeGetIRGraphResponse(GetIRGraphResponse{Success: false, ErrorMessage: UnknownRouteMessage})
}

// MalformedRequestMessage is the error_message carried by the canned
// response posted for a request/response route whose payload was too
// short to decode (router.Router's undersize responder), so a client
// waiting on response_ready sees a well-formed {success:false} reply
// instead of a zero-length one.
const MalformedRequestMessage = "malformed request payload"

// EncodeMalformedRequestResponse builds the canned response for an
// undersize request/response payload, installed via
// Router.SetUndersizeResponder (see Register). The router only uses it for
// typed request/response routes, which in this service is
// function/get_ir_graph.
func EncodeMalformedRequestResponse(routeName string) []byte {
	return EncodeGetIRGraphResponse(GetIRGraphResponse{Success: false, ErrorMessage: MalformedRequestMessage})
}
