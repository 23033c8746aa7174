// Package transport implements the shared-memory control region described
// in SPEC_FULL.md §3/§4.1/§9A: a fixed-layout record mapped from a file
// under /dev/shm (Linux's POSIX-shared-memory-backed tmpfs, grounded in
// the AlephTX shm/seqlock.go reference example), carrying one in-flight
// request slot and one in-flight response slot, synchronized by three
// named-FIFO semaphores.
package transport

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// SharedMemoryName is the canonical shared-memory object name (spec §6).
const SharedMemoryName = "/ipc_router_shared"

// Region byte layout. Every field is read/written via encoding/binary, so
// there is no struct-overlay alignment requirement.
const (
	offHasMessage        = 0
	offMessageSize       = 4
	offCurrentMessageID  = 8
	offRequestBuf        = 12
	offHasResponse       = offRequestBuf + MaxMessageSize
	offResponseSize      = offHasResponse + 4
	offResponseMessageID = offResponseSize + 4
	offResponseBuf       = offResponseMessageID + 4

	// RegionSize is the total size of the mapped control region.
	RegionSize = offResponseBuf + MaxMessageSize
)

// Region is the mapped shared-memory control record plus its three
// cross-process semaphores.
type Region struct {
	data          []byte
	file          *os.File
	path          string
	mutex         *semaphore
	dataReady     *semaphore
	responseReady *semaphore
	isServer      bool
}

func shmPath(name string) string {
	// name is spec'd as a POSIX shm object name ("/ipc_router_shared");
	// /dev/shm is where shm_open itself allocates from on Linux, so a
	// plain file there is observably the same shared memory.
	return filepath.Join("/dev/shm", filepath.Base(name))
}

// Create opens or creates the shared memory object named name, sizes it to
// RegionSize, maps it read/write, and initializes the three semaphores and
// all slot fields to zero. Any partial state is torn down before returning
// an error (spec §4.1).
func Create(name string) (*Region, error) {
	path := shmPath(name)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("transport: create shared memory %s: %w", path, err)
	}

	if err := f.Truncate(RegionSize); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("transport: size shared memory %s: %w", path, err)
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, RegionSize, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("transport: mmap %s: %w", path, err)
	}

	for i := range data {
		data[i] = 0
	}

	mutex, err := createSemaphore(path+".mutex", 1)
	if err != nil {
		_ = syscall.Munmap(data)
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}

	dataReady, err := createSemaphore(path+".data_ready", 0)
	if err != nil {
		_ = mutex.Destroy()
		_ = syscall.Munmap(data)
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}

	responseReady, err := createSemaphore(path+".response_ready", 0)
	if err != nil {
		_ = dataReady.Destroy()
		_ = mutex.Destroy()
		_ = syscall.Munmap(data)
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}

	return &Region{
		data:          data,
		file:          f,
		path:          path,
		mutex:         mutex,
		dataReady:     dataReady,
		responseReady: responseReady,
		isServer:      true,
	}, nil
}

// Attach opens the shared memory object created by a running server and
// maps it. Returns ErrNotAttached if it does not exist.
func Attach(name string) (*Region, error) {
	path := shmPath(name)

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotAttached, path)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("transport: open shared memory %s: %w", path, err)
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, RegionSize, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("transport: mmap %s: %w", path, err)
	}

	mutex, err := attachSemaphore(path + ".mutex")
	if err != nil {
		_ = syscall.Munmap(data)
		_ = f.Close()
		return nil, err
	}

	dataReady, err := attachSemaphore(path + ".data_ready")
	if err != nil {
		_ = mutex.Close()
		_ = syscall.Munmap(data)
		_ = f.Close()
		return nil, err
	}

	responseReady, err := attachSemaphore(path + ".response_ready")
	if err != nil {
		_ = dataReady.Close()
		_ = mutex.Close()
		_ = syscall.Munmap(data)
		_ = f.Close()
		return nil, err
	}

	return &Region{
		data:          data,
		file:          f,
		path:          path,
		mutex:         mutex,
		dataReady:     dataReady,
		responseReady: responseReady,
		isServer:      false,
	}, nil
}

// Close unmaps the region and releases this process's semaphore handles.
// Clients call Close; only the server calls Teardown.
func (r *Region) Close() error {
	_ = r.mutex.Close()
	_ = r.dataReady.Close()
	_ = r.responseReady.Close()
	_ = syscall.Munmap(r.data)
	return r.file.Close()
}

// Teardown destroys the semaphores, unmaps, and unlinks the backing file.
// Server-only (spec §4.1).
func (r *Region) Teardown() error {
	_ = r.mutex.Destroy()
	_ = r.dataReady.Destroy()
	_ = r.responseReady.Destroy()
	_ = syscall.Munmap(r.data)
	_ = r.file.Close()
	return os.Remove(r.path)
}

func (r *Region) getBool(off int) bool {
	return r.data[off] != 0
}

func (r *Region) setBool(off int, v bool) {
	if v {
		r.data[off] = 1
	} else {
		r.data[off] = 0
	}
}

func (r *Region) getUint32(off int) uint32 {
	return binary.LittleEndian.Uint32(r.data[off : off+4])
}

func (r *Region) setUint32(off int, v uint32) {
	binary.LittleEndian.PutUint32(r.data[off:off+4], v)
}
