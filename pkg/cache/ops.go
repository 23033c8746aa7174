package cache

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Put stores value under key, tagged with functionName for diagnostics
// (spec §4.4/§6). If key already has a used slot, that slot is reused:
// its length/offset/checksum are overwritten and fresh bytes are bump-
// allocated at next_offset, leaving the old bytes stranded until the next
// CompactCache (spec §9's "Cache Put with existing key" note — this
// package takes the documented default policy rather than the in-place
// overwrite alternative). A Put that would overflow the data region
// triggers one automatic CompactCache pass before giving up with ErrFull.
// key and functionName are bounds-checked against the slot table's
// fixed-width fields before anything is written, so an oversize value
// fails loudly instead of being silently truncated by encodeCString.
func (c *Cache) Put(functionName, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ok {
		return ErrNotInitialized
	}
	if key == "" || len(value) == 0 {
		return ErrEmptyInput
	}
	if len(key) >= KeySize {
		return ErrKeyTooLong
	}
	if len(functionName) >= NameSize {
		return ErrNameTooLong
	}

	slot := c.findSlotLocked(key)
	if slot < 0 {
		slot = c.findFreeSlotLocked()
		if slot < 0 {
			return ErrFull
		}
	}

	if !c.tryAllocateLocked(slot, functionName, key, value) {
		c.compactLocked()
		if !c.tryAllocateLocked(slot, functionName, key, value) {
			return ErrFull
		}
	}

	c.flushLocked()
	return nil
}

// tryAllocateLocked attempts to bump-allocate len(value) bytes, write
// them, and populate slot's entry. Returns false without mutating
// anything if there is not enough free space.
func (c *Cache) tryAllocateLocked(slot int, functionName, key string, value []byte) bool {
	next := c.nextOffsetLocked()
	if uint64(next)+uint64(len(value)) > FileSize {
		return false
	}

	wasUsed := c.readEntryLocked(slot).isUsed

	copy(c.data[next:next+uint32(len(value))], value)

	c.writeEntryLocked(slot, entry{
		functionName: functionName,
		key:          key,
		length:       uint32(len(value)),
		offset:       next,
		isUsed:       true,
		checksum:     checksum(value),
	})
	c.setNextOffsetLocked(next + uint32(len(value)))

	if !wasUsed {
		c.setEntryCountLocked(c.entryCountLocked() + 1)
	}
	return true
}

// Get retrieves the bytes stored under key. On a checksum mismatch it
// logs and returns ErrCorrupt without evicting the entry (spec §9's
// documented choice); the returned slice is a copy, not a view into the
// mapping, since the mapping may be mutated by the next Put/Remove before
// the caller is done with it.
func (c *Cache) Get(key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ok {
		return nil, ErrNotInitialized
	}

	slot := c.findSlotLocked(key)
	if slot < 0 {
		return nil, nil
	}

	e := c.readEntryLocked(slot)
	raw := c.data[e.offset : e.offset+e.length]
	if checksum(raw) != e.checksum {
		c.log.WithFields(logrus.Fields{"key": key, "slot": slot}).Error("cache: checksum mismatch, treating as miss")
		return nil, ErrCorrupt
	}

	out := make([]byte, e.length)
	copy(out, raw)
	return out, nil
}

// Remove marks key's slot free and zeroes its metadata; the underlying
// data bytes are left stale until CompactCache (spec §4.4).
func (c *Cache) Remove(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ok {
		return ErrNotInitialized
	}

	slot := c.findSlotLocked(key)
	if slot < 0 {
		return nil
	}

	c.clearEntryLocked(slot)
	c.setEntryCountLocked(c.entryCountLocked() - 1)
	c.flushLocked()
	return nil
}

// CompactCache moves every used slot's payload down to consecutive
// offsets starting at the data-region base, in slot order, and resets
// next_offset to the new high-water mark. It does not reorder the slot
// table itself (spec §4.4).
func (c *Cache) CompactCache() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ok {
		return ErrNotInitialized
	}
	c.compactLocked()
	c.flushLocked()
	return nil
}

func (c *Cache) compactLocked() {
	write := uint32(dataRegionStart)

	for slot := 0; slot < MaxEntries; slot++ {
		e := c.readEntryLocked(slot)
		if !e.isUsed {
			continue
		}

		if e.offset != write {
			copy(c.data[write:write+e.length], c.data[e.offset:e.offset+e.length])
			e.offset = write
			c.writeEntryLocked(slot, e)
		}
		write += e.length
	}

	c.setNextOffsetLocked(write)

	if c.onCompact != nil {
		c.onCompact(write, FileSize-write)
	}
}

func (c *Cache) findSlotLocked(key string) int {
	for slot := 0; slot < MaxEntries; slot++ {
		e := c.readEntryLocked(slot)
		if e.isUsed && e.key == key {
			return slot
		}
	}
	return -1
}

func (c *Cache) findFreeSlotLocked() int {
	for slot := 0; slot < MaxEntries; slot++ {
		if !c.readEntryLocked(slot).isUsed {
			return slot
		}
	}
	return -1
}

// corruptByteForTesting flips one byte of key's stored data region, used
// only by tests to exercise the checksum-mismatch path (spec §8 scenario
// 5) without reaching into package-private state from outside the
// package.
func (c *Cache) corruptByteForTesting(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot := c.findSlotLocked(key)
	if slot < 0 {
		return fmt.Errorf("cache: no such key %q", key)
	}
	e := c.readEntryLocked(slot)
	if e.length == 0 {
		return fmt.Errorf("cache: entry %q has no data to corrupt", key)
	}
	c.data[e.offset] ^= 0xFF
	return nil
}
