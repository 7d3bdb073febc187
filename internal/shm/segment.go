// Package shm manages the named shared memory segment backing the ring buffer.
package shm

import (
	"errors"
	"os"
	"sync"

	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/sys/unix"
)

// Segment is a named shared memory object, optionally mapped into the process.
// The owner is the process that created the object and the only one allowed to unlink it.
type Segment struct {
	name  string
	path  string
	owner bool

	mux      sync.Mutex
	fd       int
	mem      []byte
	released bool
}

// Create creates a new segment of the given size.
// It fails if an object with the same name already exists,
// in that case the returned [*AcquisitionError] wraps [fs.ErrExist].
func Create(cfg *Config, size int) (*Segment, error) {
	path := cfg.Path()

	if err := checkFreeSpace(cfg.Dir, size); err != nil {
		return nil, newAcquisitionError(OpCreate, cfg.Name, err)
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL|unix.O_CLOEXEC, 0o666)
	if err != nil {
		return nil, newAcquisitionError(OpCreate, cfg.Name, err)
	}

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		_ = unix.Unlink(path)
		return nil, newAcquisitionError(OpSize, cfg.Name, err)
	}

	return &Segment{
		name:  cfg.Name,
		path:  path,
		owner: true,
		fd:    fd,
	}, nil
}

// OpenExisting opens a segment created by another process.
// The returned segment is not the owner, so releasing it never unlinks the name.
func OpenExisting(cfg *Config) (*Segment, error) {
	fd, err := unix.Open(cfg.Path(), unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, newAcquisitionError(OpOpen, cfg.Name, err)
	}

	return &Segment{
		name: cfg.Name,
		path: cfg.Path(),
		fd:   fd,
	}, nil
}

// Map maps the first size bytes of the segment as shared read/write memory.
// Calling it again returns the existing mapping.
func (s *Segment) Map(size int) ([]byte, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	if s.released {
		return nil, newAcquisitionError(OpMap, s.name, ErrReleased)
	}

	if s.mem != nil {
		if len(s.mem) < size {
			return nil, newAcquisitionError(OpMap, s.name, ErrSegmentTooSmall)
		}
		return s.mem, nil
	}

	var stat unix.Stat_t
	if err := unix.Fstat(s.fd, &stat); err != nil {
		return nil, newAcquisitionError(OpMap, s.name, err)
	}

	if stat.Size < int64(size) {
		return nil, newAcquisitionError(OpMap, s.name, ErrSegmentTooSmall)
	}

	mem, err := unix.Mmap(s.fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, newAcquisitionError(OpMap, s.name, err)
	}

	s.mem = mem

	return mem, nil
}

// Release unmaps the memory and closes the descriptor.
// If the segment is the owner, the name is also unlinked.
// Only the first call has effect.
func (s *Segment) Release() error {
	s.mux.Lock()
	defer s.mux.Unlock()

	if s.released {
		return nil
	}
	s.released = true

	var errs []error

	if s.mem != nil {
		if err := unix.Munmap(s.mem); err != nil {
			errs = append(errs, err)
		}
		s.mem = nil
	}

	if s.owner && s.stillLinked() {
		if err := unix.Unlink(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}

	if err := unix.Close(s.fd); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// stillLinked states whether the path still refers to the object created by this process.
// The name may have been removed and reused by another writer.
func (s *Segment) stillLinked() bool {
	var fdStat, pathStat unix.Stat_t

	if err := unix.Fstat(s.fd, &fdStat); err != nil {
		return false
	}

	if err := unix.Stat(s.path, &pathStat); err != nil {
		return false
	}

	return fdStat.Dev == pathStat.Dev && fdStat.Ino == pathStat.Ino
}

// Name returns the name of the segment.
func (s *Segment) Name() string {
	return s.name
}

// Path returns the path of the object backing the segment.
func (s *Segment) Path() string {
	return s.path
}

// Owner states whether the segment was created by this process.
func (s *Segment) Owner() bool {
	return s.owner
}

// Released states whether the segment has been released.
func (s *Segment) Released() bool {
	s.mux.Lock()
	defer s.mux.Unlock()

	return s.released
}

// Remove unlinks the named object, e.g. a segment left behind by a crashed writer.
// Processes that still map it are not affected.
func Remove(cfg *Config) error {
	return unix.Unlink(cfg.Path())
}

// Exists states whether the named object exists.
func Exists(cfg *Config) bool {
	_, err := os.Stat(cfg.Path())
	return err == nil
}

// Stat returns the size of the named object.
func Stat(cfg *Config) (int64, error) {
	info, err := os.Stat(cfg.Path())
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func checkFreeSpace(dir string, size int) error {
	usage, err := disk.Usage(dir)
	if err != nil {
		// The check is best effort, ftruncate reports the real failure
		return nil
	}

	if usage.Free < uint64(size) {
		return ErrNoSpace
	}

	return nil
}
