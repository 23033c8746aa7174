package ircache

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/v8codecache/ircache/pkg/cache"
	"github.com/v8codecache/ircache/pkg/router"
)

// Service owns the handler state for this server's route table: the
// shared cache reference (spec §9's "Replacing the global singleton
// cache" — one value, passed by reference, not a package-level
// singleton) and the demo user store.
type Service struct {
	cache *cache.Cache
	users *userStore
	log   logrus.FieldLogger
}

// NewService constructs the handler state bound to c. c is owned by the
// caller (typically pkg/ircache/server), which is responsible for
// opening and closing it.
func NewService(c *cache.Cache, log logrus.FieldLogger) *Service {
	return &Service{cache: c, users: newUserStore(), log: log}
}

// Register installs this service's full route table on r (spec §6's
// canonical route set plus the §6A legacy variant).
func (s *Service) Register(r *router.Router) {
	r.SetUndersizeResponder(EncodeMalformedRequestResponse)

	r.HandleTyped(RouteUserCreate, usernameSize+emailSize, s.handleUserCreate)
	r.HandleTyped(RouteUserGet, usernameSize, s.handleUserGet)
	r.HandleTyped(RouteUserDelete, usernameSize, s.handleUserDelete)

	r.HandleTyped(RouteAddIRGraph, functionHashSize+4, s.handleAddIRGraph)
	r.HandleTypedResponse(RouteGetIRGraph, functionHashSize, s.handleGetIRGraph)

	// function/get_ir is left untyped: its own miss/malformed response is
	// a single zero byte, not the success/error_message shape the
	// undersize responder above produces, so its own length check inside
	// handleGetIRLegacy must run instead of the router's generic one.
	r.HandleResponse(RouteGetIRLegacy, s.handleGetIRLegacy)
}

func (s *Service) handleUserCreate(payload []byte) {
	username, email, ok := decodeUserCreate(payload)
	if !ok {
		s.log.Warn("ircache: malformed user/create payload")
		return
	}
	s.users.create(username, email)
	s.log.WithFields(logrus.Fields{"username": username}).Debug("ircache: user created")
}

func (s *Service) handleUserGet(payload []byte) {
	username, ok := decodeUsername(payload)
	if !ok {
		s.log.Warn("ircache: malformed user/get payload")
		return
	}
	if _, found := s.users.get(username); !found {
		s.log.WithField("username", username).Debug("ircache: user/get miss")
	}
}

func (s *Service) handleUserDelete(payload []byte) {
	username, ok := decodeUsername(payload)
	if !ok {
		s.log.Warn("ircache: malformed user/delete payload")
		return
	}
	s.users.delete(username)
}

func (s *Service) handleAddIRGraph(payload []byte) {
	req, err := DecodeAddIRGraphRequest(payload)
	if err != nil {
		s.log.WithError(err).Warn("ircache: malformed function/add_ir_graph payload")
		return
	}

	if err := s.cache.Put("ir_graph", req.FunctionCodeHash, req.Graph); err != nil {
		s.log.WithError(err).WithField("function_code_hash", req.FunctionCodeHash).Warn("ircache: add_ir_graph put failed")
	}
}

func (s *Service) handleGetIRGraph(payload []byte, messageID uint32) []byte {
	req, err := DecodeGetIRGraphRequest(payload)
	if err != nil {
		s.log.WithError(err).Warn("ircache: malformed function/get_ir_graph payload")
		return EncodeGetIRGraphResponse(GetIRGraphResponse{Success: false, ErrorMessage: errNotFoundMessage})
	}

	graph, err := s.cache.Get(req.FunctionCodeHash)
	if err != nil && !errors.Is(err, cache.ErrCorrupt) {
		s.log.WithError(err).Warn("ircache: get_ir_graph cache lookup failed")
		return EncodeGetIRGraphResponse(GetIRGraphResponse{Success: false, ErrorMessage: errNotFoundMessage})
	}
	if errors.Is(err, cache.ErrCorrupt) {
		s.log.WithField("function_code_hash", req.FunctionCodeHash).Error("ircache: get_ir_graph found corrupted entry")
	}
	if graph == nil {
		return EncodeGetIRGraphResponse(GetIRGraphResponse{Success: false, ErrorMessage: errNotFoundMessage})
	}

	return EncodeGetIRGraphResponse(GetIRGraphResponse{Success: true, SerializedGraph: graph})
}

func (s *Service) handleGetIRLegacy(payload []byte, messageID uint32) []byte {
	req, err := DecodeGetIRGraphRequest(payload)
	if err != nil {
		s.log.WithError(err).Warn("ircache: malformed function/get_ir payload")
		return []byte{0}
	}

	graph, err := s.cache.Get(req.FunctionCodeHash)
	if err != nil || graph == nil {
		return []byte{0}
	}

	return append([]byte{1}, encodeLegacyGraph(graph)...)
}
