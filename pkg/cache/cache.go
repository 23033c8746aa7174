// Package cache implements the memory-mapped code cache of SPEC_FULL.md
// §4.4: a fixed-size file-backed store with a header, a 1024-slot table,
// and a bump-allocated data region, offering put/get/remove/clear/compact
// with content-integrity checks. Grounded on the slot-table validation
// and mmap-after-validate discipline of the calvinalkan-agent-task
// slotcache reference example, adapted to this package's fixed (not
// caller-configured) on-disk layout.
package cache

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Cache owns a memory map over a fixed-size backing file and serializes
// all public operations behind a single mutex (spec §4.4/§9: "Replacing
// the global singleton cache" — callers construct one Cache and share a
// reference rather than reaching through a package-level singleton).
type Cache struct {
	mu        sync.Mutex
	log       logrus.FieldLogger
	path      string
	file      *os.File
	data      []byte
	ok        bool
	onCompact func(usedBytes, freeBytes uint32)
}

// OnCompact registers fn to be called after every CompactCache pass,
// whether triggered explicitly or automatically by an overflowing Put,
// with the resulting used/free byte counts. Used by pkg/ircache/server
// to log occupancy once per compaction (SPEC_FULL.md §6A). fn must not
// call back into the Cache: it runs while the internal mutex is held.
func (c *Cache) OnCompact(fn func(usedBytes, freeBytes uint32)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCompact = fn
}

// Open opens or creates the backing file at path, sizes it to FileSize,
// maps it shared read/write, and validates the header — reinitializing it
// if the magic or version does not match (spec §4.4). A failure leaves
// the returned Cache uninitialized: every subsequent public operation
// reports ErrNotInitialized rather than panicking, mirroring how the
// source degrades a failed mmap/shm_open to a no-op store.
func Open(path string, log logrus.FieldLogger) (*Cache, error) {
	c := &Cache{path: path, log: log}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		log.WithError(err).WithField("path", path).Error("cache: failed to open backing file")
		return c, nil
	}

	if err := f.Truncate(FileSize); err != nil {
		log.WithError(err).Error("cache: failed to size backing file")
		_ = f.Close()
		return c, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, FileSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		log.WithError(err).Error("cache: failed to mmap backing file")
		_ = f.Close()
		return c, nil
	}

	c.file = f
	c.data = data
	c.ok = true

	if !c.isValidLocked() {
		log.WithField("path", path).Info("cache: header invalid or fresh file, initializing")
		c.initializeLocked()
	}

	return c, nil
}

// Close unmaps the backing file. It does not delete it — the cache file
// is meant to survive process restarts (spec §3).
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ok {
		return nil
	}
	c.ok = false

	if err := unix.Munmap(c.data); err != nil {
		return fmt.Errorf("cache: munmap: %w", err)
	}
	return c.file.Close()
}

// IsValid reports whether the header currently carries the expected
// magic number and format version (spec §4.4).
func (c *Cache) IsValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ok && c.isValidLocked()
}

func (c *Cache) isValidLocked() bool {
	return binary.LittleEndian.Uint32(c.data[offMagicNumber:]) == MagicNumber &&
		binary.LittleEndian.Uint32(c.data[offVersion:]) == FormatVersion
}

// initializeLocked zeroes the header and slot table and resets
// next_offset to the start of the data region. Called from Open on a
// mismatched header and from Clear.
func (c *Cache) initializeLocked() {
	for i := 0; i < dataRegionStart; i++ {
		c.data[i] = 0
	}
	binary.LittleEndian.PutUint32(c.data[offMagicNumber:], MagicNumber)
	binary.LittleEndian.PutUint32(c.data[offVersion:], FormatVersion)
	binary.LittleEndian.PutUint32(c.data[offEntryCount:], 0)
	binary.LittleEndian.PutUint32(c.data[offNextOffset:], uint32(dataRegionStart))
	c.flushLocked()
}

// Clear reinitializes the header and slot table; next_offset returns to
// the start of the data region (spec §4.4).
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ok {
		return ErrNotInitialized
	}
	c.initializeLocked()
	return nil
}

// GetEntryCount returns entry_count from the header.
func (c *Cache) GetEntryCount() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ok {
		return 0, ErrNotInitialized
	}
	return binary.LittleEndian.Uint32(c.data[offEntryCount:]), nil
}

// GetUsedSpace returns next_offset (spec §4.4).
func (c *Cache) GetUsedSpace() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ok {
		return 0, ErrNotInitialized
	}
	return c.nextOffsetLocked(), nil
}

// GetFreeSpace returns FileSize - next_offset (spec §4.4).
func (c *Cache) GetFreeSpace() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ok {
		return 0, ErrNotInitialized
	}
	return FileSize - c.nextOffsetLocked(), nil
}

func (c *Cache) nextOffsetLocked() uint32 {
	return binary.LittleEndian.Uint32(c.data[offNextOffset:])
}

func (c *Cache) setNextOffsetLocked(v uint32) {
	binary.LittleEndian.PutUint32(c.data[offNextOffset:], v)
}

func (c *Cache) entryCountLocked() uint32 {
	return binary.LittleEndian.Uint32(c.data[offEntryCount:])
}

func (c *Cache) setEntryCountLocked(v uint32) {
	binary.LittleEndian.PutUint32(c.data[offEntryCount:], v)
}

// flushLocked is the msync-equivalent flush called at the end of every
// mutating operation (spec §4.4/§5). MAP_SHARED already makes writes
// visible to other mappers of the same file immediately; msync is only
// needed to push them to the backing store for crash durability, so a
// failure here is logged but does not fail the call it was flushing.
func (c *Cache) flushLocked() {
	if err := unix.Msync(c.data, unix.MS_SYNC); err != nil {
		c.log.WithError(err).Warn("cache: msync failed")
	}
}
