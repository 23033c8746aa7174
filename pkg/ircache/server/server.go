// Package server implements the single-threaded event loop of
// SPEC_FULL.md §4.3: wait for a request, dispatch it through the route
// table, optionally post a response, release the transport mutex, loop —
// wiring pkg/transport, pkg/router, and pkg/cache together behind the
// routes registered by pkg/ircache.
package server

import (
	"fmt"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"

	"github.com/v8codecache/ircache/pkg/cache"
	"github.com/v8codecache/ircache/pkg/ircache"
	"github.com/v8codecache/ircache/pkg/ircache/activity"
	"github.com/v8codecache/ircache/pkg/router"
	"github.com/v8codecache/ircache/pkg/transport"
)

// Server owns the transport region, the cache file, and the route table
// for one running instance of this service.
type Server struct {
	region   *transport.Region
	router   *router.Router
	cache    *cache.Cache
	log      logrus.FieldLogger
	activity *activity.Log
}

// Options configures a new Server.
type Options struct {
	SharedMemoryName string // defaults to transport.SharedMemoryName
	CacheFilePath    string // defaults to DefaultCacheFilePath
	ActivityLogSize  uint   // defaults to 4096 bytes
}

// DefaultCacheFilePath is the canonical cache file location (spec §6).
const DefaultCacheFilePath = "/tmp/v8_code_cache"

// New creates the transport region and cache file, registers the
// canonical route table, and returns a Server ready to Run. Any failure
// tears down whatever was already created (spec §4.1's "partial state
// must be torn down").
func New(opts Options, log logrus.FieldLogger) (*Server, error) {
	shmName := opts.SharedMemoryName
	if shmName == "" {
		shmName = transport.SharedMemoryName
	}
	cachePath := opts.CacheFilePath
	if cachePath == "" {
		cachePath = DefaultCacheFilePath
	}
	activitySize := opts.ActivityLogSize
	if activitySize == 0 {
		activitySize = 4096
	}

	c, err := cache.Open(cachePath, log)
	if err != nil {
		return nil, fmt.Errorf("server: open cache: %w", err)
	}
	if !c.IsValid() {
		_ = c.Close()
		return nil, fmt.Errorf("server: cache at %s failed to initialize", cachePath)
	}

	region, err := transport.Create(shmName)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("server: create transport region: %w", err)
	}

	r := router.New(log, transport.RouteHash)
	svc := ircache.NewService(c, log)
	svc.Register(r)

	act := activity.NewLog(activitySize)

	s := &Server{region: region, router: r, cache: c, log: log, activity: act}

	used, _ := c.GetUsedSpace()
	free, _ := c.GetFreeSpace()
	log.WithFields(logrus.Fields{
		"used": units.HumanSize(float64(used)),
		"free": units.HumanSize(float64(free)),
	}).Info("server: cache opened")

	c.OnCompact(func(usedBytes, freeBytes uint32) {
		log.WithFields(logrus.Fields{
			"used": units.HumanSize(float64(usedBytes)),
			"free": units.HumanSize(float64(freeBytes)),
		}).Info("server: cache compacted")
	})

	return s, nil
}

// Run executes the event loop of spec §4.3 until RequestShutdown is
// called (from a signal handler, typically via Shutdown) and the loop
// observes the flag after waking.
func (s *Server) Run() error {
	for {
		if err := s.region.WaitForData(); err != nil {
			return fmt.Errorf("server: wait for data: %w", err)
		}

		if ircache.ShutdownRequested() {
			return nil
		}

		if !s.region.HasMessage() {
			if err := s.region.ReleaseMutex(); err != nil {
				return fmt.Errorf("server: release mutex: %w", err)
			}
			continue
		}

		s.dispatchOne()

		if err := s.region.ReleaseMutex(); err != nil {
			return fmt.Errorf("server: release mutex: %w", err)
		}
	}
}

func (s *Server) dispatchOne() {
	frame, err := s.region.ReadRequest()
	s.region.ClearMessage()
	if err != nil {
		s.log.WithError(err).Error("server: failed to decode request")
		return
	}

	s.activity.RecordDispatch(activity.DispatchRecord{
		RouteHash:   frame.RouteHash,
		MessageID:   frame.MessageID,
		PayloadSize: len(frame.Payload),
	})

	resp, wantsResponse, known := s.router.Dispatch(frame.RouteHash, frame.Payload, frame.MessageID)

	switch {
	case !known:
		if err := s.region.PostResponse(frame.MessageID, ircache.EncodeUnknownRouteResponse()); err != nil {
			s.log.WithError(err).Error("server: failed to post unknown-route response")
		}
	case wantsResponse:
		if err := s.region.PostResponse(frame.MessageID, resp); err != nil {
			s.log.WithError(err).Error("server: failed to post response")
		}
	}
}

// Shutdown marks the loop for graceful exit and wakes it if it is
// currently blocked on WaitForData (spec §4.3: "Shutdown is triggered by
// a signal handler that sets the flag and posts data_ready once").
func (s *Server) Shutdown() error {
	ircache.RequestShutdown()
	return s.region.UnblockForShutdown()
}

// Close tears down the transport region and closes the cache file. Call
// after Run returns.
func (s *Server) Close() error {
	cacheErr := s.cache.Close()
	regionErr := s.region.Teardown()
	if cacheErr != nil {
		return cacheErr
	}
	return regionErr
}

// ActivitySnapshot returns a copy of the recent dispatch activity log,
// useful for diagnosing a hang or crash.
func (s *Server) ActivitySnapshot() []byte {
	return s.activity.Snapshot()
}

// ActivityRecords parses the recent dispatch activity log back into
// structured records, oldest first.
func (s *Server) ActivityRecords() []activity.DispatchRecord {
	return s.activity.Records()
}
