// Package activity keeps a small fixed-size ring of recent dispatch
// activity so a running server can report what it was doing just before a
// crash or hang, without retaining an unbounded log.
package activity

import (
	"fmt"
	"io"
	"sync"
)

// DispatchRecord is one entry in the ring: the route hash and message ID
// the event loop handed to pkg/router, plus the request payload size
// (spec §4.3's dispatch step). RouteHash is the 32-bit canonical form
// from spec §6, regardless of which route table shape a caller used to
// produce it.
type DispatchRecord struct {
	RouteHash   uint32
	MessageID   uint32
	PayloadSize int
}

func (r DispatchRecord) String() string {
	return fmt.Sprintf("dispatch route_hash=%d message_id=%d payload_size=%d\n", r.RouteHash, r.MessageID, r.PayloadSize)
}

func parseDispatchRecord(line string) (DispatchRecord, bool) {
	var r DispatchRecord
	n, err := fmt.Sscanf(line, "dispatch route_hash=%d message_id=%d payload_size=%d", &r.RouteHash, &r.MessageID, &r.PayloadSize)
	if err != nil || n != 3 {
		return DispatchRecord{}, false
	}
	return r, true
}

// Log is a fixed-capacity ring buffer of bytes. Writes past capacity
// overwrite the oldest bytes still held. It is safe for concurrent use.
type Log struct {
	lock     sync.Mutex
	buf      []byte
	capacity uint
	size     uint
	read     uint
	write    uint
}

// NewLog creates a ring that retains at most size bytes.
func NewLog(size uint) *Log {
	return &Log{
		buf:      make([]byte, size),
		capacity: size,
	}
}

// Write appends buffer to the ring, evicting the oldest bytes if it would
// overflow capacity. It never returns an error and never blocks.
func (l *Log) Write(buffer []byte) (int, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.capacity == 0 {
		return len(buffer), nil
	}

	written := 0
	shouldPushRead := l.size == l.capacity
	si := 0
	if len(buffer) > int(l.capacity) {
		si = len(buffer) - int(l.capacity)
	}
	for _, b := range buffer[si:] {
		if shouldPushRead {
			if l.read+1 < l.capacity {
				l.read++
			} else {
				l.read = 0
			}
		}
		l.buf[l.write] = b
		if l.write+1 < l.capacity {
			l.write++
		} else {
			l.write = 0
		}
		l.size++
		if l.size > l.capacity {
			l.size = l.capacity
		}
		shouldPushRead = l.write == l.read
		written++
	}
	return si + written, nil
}

// Read drains the oldest buffered bytes into buffer, FIFO order. Returns
// io.EOF once nothing remains buffered.
func (l *Log) Read(buffer []byte) (int, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	var err error
	read := uint(0)
	for read < l.size && int(read) < len(buffer) {
		buffer[read] = l.buf[l.read]
		if l.read+1 < l.capacity {
			l.read++
		} else {
			l.read = 0
		}
		read++
	}
	l.size -= read
	if read == 0 {
		err = io.EOF
	}
	return int(read), err
}

// RecordDispatch appends one dispatch line to the ring, evicting the
// oldest bytes if it would overflow capacity (spec §4.3: a server should
// be able to report the last few requests it handled before a crash).
func (l *Log) RecordDispatch(rec DispatchRecord) {
	_, _ = l.Write([]byte(rec.String()))
}

// Records parses the currently buffered text back into DispatchRecords,
// oldest first. A record straddling the point where the oldest bytes
// were evicted mid-line is dropped rather than returned malformed.
func (l *Log) Records() []DispatchRecord {
	snapshot := l.Snapshot()

	var records []DispatchRecord
	for _, line := range splitLines(snapshot) {
		if rec, ok := parseDispatchRecord(line); ok {
			records = append(records, rec)
		}
	}
	return records
}

func splitLines(b []byte) []string {
	var lines []string
	start := 0
	for i, c := range b {
		if c == '\n' {
			lines = append(lines, string(b[start:i]))
			start = i + 1
		}
	}
	return lines
}

// Snapshot returns a copy of the currently buffered bytes without
// consuming them, oldest first. Useful for periodic diagnostic dumps.
func (l *Log) Snapshot() []byte {
	l.lock.Lock()
	defer l.lock.Unlock()

	out := make([]byte, l.size)
	idx := l.read
	for i := uint(0); i < l.size; i++ {
		out[i] = l.buf[idx]
		if idx+1 < l.capacity {
			idx++
		} else {
			idx = 0
		}
	}
	return out
}
