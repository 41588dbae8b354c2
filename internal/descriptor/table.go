package descriptor

import (
	"syscall"
)

// MaxDescriptors bounds the fd table, mirroring a typical RLIMIT_NOFILE.
const MaxDescriptors = 1024

// A Table is a process's file descriptor table. Fds are allocated
// lowest-free first, as the kernel does, so close/open pairs reuse numbers.
type Table struct {
	descriptors map[int]*Descriptor
	// nextFd is a search hint: no fd below it is free
	nextFd int
}

func NewTable() *Table {
	return &Table{
		descriptors: make(map[int]*Descriptor),
	}
}

// Register adds a descriptor at the lowest free fd and returns it.
func (t *Table) Register(d *Descriptor) (int, error) {
	fd := t.nextFd
	for {
		if fd >= MaxDescriptors {
			return 0, syscall.ENFILE
		}
		if _, used := t.descriptors[fd]; !used {
			break
		}
		fd++
	}
	t.descriptors[fd] = d
	d.SetHandle(fd)
	t.nextFd = fd + 1
	return fd, nil
}

// RegisterAt adds a descriptor at a specific fd, returning the descriptor it
// replaced, if any. The caller owns closing the replaced descriptor.
func (t *Table) RegisterAt(d *Descriptor, fd int) *Descriptor {
	replaced := t.descriptors[fd]
	t.descriptors[fd] = d
	d.SetHandle(fd)
	return replaced
}

// Deregister removes and returns the descriptor at fd, or nil if the fd is
// not open. Ownership of the descriptor moves to the caller.
func (t *Table) Deregister(fd int) *Descriptor {
	d, ok := t.descriptors[fd]
	if !ok {
		return nil
	}
	delete(t.descriptors, fd)
	if fd < t.nextFd {
		t.nextFd = fd
	}
	return d
}

// Get returns the descriptor at fd, or nil if the fd is not open.
func (t *Table) Get(fd int) *Descriptor {
	return t.descriptors[fd]
}

// FreeAll frees every descriptor, for process teardown.
func (t *Table) FreeAll() {
	for fd, d := range t.descriptors {
		d.Free()
		delete(t.descriptors, fd)
	}
	t.nextFd = 0
}
