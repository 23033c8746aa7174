package transport

import (
	"fmt"
	"os"
	"syscall"
)

// semaphore is a cross-process counting semaphore built on a named FIFO,
// substituting for POSIX named semaphores (see SPEC_FULL.md §9A: neither
// the standard library nor golang.org/x/sys/unix expose sem_open/sem_wait/
// sem_post without cgo). A post writes one byte into the pipe; a wait
// blocks reading one byte out of it. The pipe's own buffering gives the
// semaphore its counting behavior for free.
type semaphore struct {
	path string
	file *os.File
}

// createSemaphore makes a fresh named-pipe semaphore at path, removing any
// stale pipe left behind by a crashed server, and posts it initial times.
func createSemaphore(path string, initial int) (*semaphore, error) {
	_ = os.Remove(path)

	if err := syscall.Mkfifo(path, 0o600); err != nil {
		return nil, fmt.Errorf("mkfifo %s: %w", path, err)
	}

	// O_RDWR never blocks on a FIFO even with no peer yet connected, unlike
	// O_RDONLY or O_WRONLY alone.
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("open fifo %s: %w", path, err)
	}

	s := &semaphore{path: path, file: f}
	for i := 0; i < initial; i++ {
		if err := s.Post(); err != nil {
			_ = s.Destroy()
			return nil, fmt.Errorf("prime semaphore %s: %w", path, err)
		}
	}

	return s, nil
}

// attachSemaphore opens an existing named-pipe semaphore created by the
// server.
func attachSemaphore(path string) (*semaphore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotAttached, path)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open fifo %s: %w", path, err)
	}

	return &semaphore{path: path, file: f}, nil
}

// Wait blocks until a permit is available, consuming it.
func (s *semaphore) Wait() error {
	var b [1]byte
	for {
		n, err := s.file.Read(b[:])
		if n == 1 {
			return nil
		}
		if err != nil {
			return fmt.Errorf("semaphore wait on %s: %w", s.path, err)
		}
	}
}

// Post releases one permit.
func (s *semaphore) Post() error {
	b := [1]byte{1}
	_, err := s.file.Write(b[:])
	if err != nil {
		return fmt.Errorf("semaphore post on %s: %w", s.path, err)
	}
	return nil
}

// Close releases this process's handle without removing the pipe.
func (s *semaphore) Close() error {
	return s.file.Close()
}

// Destroy closes and unlinks the pipe. Server-only: clients must never
// remove a semaphore they didn't create.
func (s *semaphore) Destroy() error {
	_ = s.file.Close()
	return os.Remove(s.path)
}
