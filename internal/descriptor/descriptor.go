// Package descriptor implements the file abstraction of the simulator: the
// reference-counted PosixFile with status-listener readiness notification,
// the first-generation LegacyHandle, and the Descriptor wrapper that unifies
// the two so call sites do not branch on generation.
package descriptor

import (
	"sync/atomic"
)

// LegacyKind tags what a legacy handle refers to, so handlers can validate
// that an fd has the type they expect.
type LegacyKind int

const (
	LegacyNone LegacyKind = iota
	LegacyTCP
	LegacyEpoll
	LegacyTimer
)

// A LegacyHandle is a first-generation descriptor. It predates PosixFile and
// carries its own reference count and a process-local integer handle slot.
type LegacyHandle struct {
	refs atomic.Int64

	kind   LegacyKind
	handle int
}

func NewLegacyHandle(kind LegacyKind) *LegacyHandle {
	h := &LegacyHandle{kind: kind, handle: -1}
	h.refs.Store(1)
	return h
}

func (h *LegacyHandle) Kind() LegacyKind {
	return h.kind
}

func (h *LegacyHandle) Handle() int {
	return h.handle
}

func (h *LegacyHandle) SetHandle(handle int) {
	h.handle = handle
}

func (h *LegacyHandle) Ref() *LegacyHandle {
	if h.refs.Add(1) <= 1 {
		panic("ref of dead legacy handle")
	}
	return h
}

func (h *LegacyHandle) Unref() {
	if h.refs.Add(-1) < 0 {
		panic("unref of dead legacy handle")
	}
}

// RefCount is exposed for tests; the count is otherwise only touched through
// Ref and Unref.
func (h *LegacyHandle) RefCount() int64 {
	return h.refs.Load()
}

// Flags are per-descriptor flags, distinct from the file status flags shared
// by all descriptors of the same file.
type Flags uint32

const (
	FlagCloExec Flags = 1 << iota
)

// A Descriptor wraps either a legacy handle or a new PosixFile. Exactly one
// of the two variants is set. The wrapper exists so the two descriptor
// generations can coexist during incremental replacement: call sites hold
// Descriptors and recover the concrete variant only when they need it.
type Descriptor struct {
	// tagged union: exactly one of legacy and file is non-nil
	legacy *LegacyHandle
	file   *PosixFile

	flags Flags
	freed bool
}

// FromLegacy wraps a legacy handle, taking ownership of the caller's
// reference without incrementing. Freeing the descriptor releases it.
func FromLegacy(h *LegacyHandle) *Descriptor {
	return &Descriptor{legacy: h}
}

// FromFile wraps a PosixFile, taking ownership of the caller's reference
// without incrementing. Freeing the descriptor drops it.
func FromFile(f *PosixFile) *Descriptor {
	return &Descriptor{file: f}
}

// AsLegacy returns the borrowed legacy handle, or nil for the New variant.
// The reference count is not modified, so the returned handle must not
// outlive the descriptor.
func (d *Descriptor) AsLegacy() *LegacyHandle {
	return d.legacy
}

// SetHandle stores the process-local handle slot of a legacy descriptor.
// This is a no-op for the New variant.
func (d *Descriptor) SetHandle(handle int) {
	if d.legacy != nil {
		d.legacy.SetHandle(handle)
	}
}

// BorrowFile returns the borrowed PosixFile, or nil for the Legacy variant.
// The reference count is not modified, so the returned file must not outlive
// the descriptor.
func (d *Descriptor) BorrowFile() *PosixFile {
	return d.file
}

// NewRefFile returns the PosixFile with its reference count incremented, or
// nil for the Legacy variant. The caller owns the increment and must release
// it with Drop.
func (d *Descriptor) NewRefFile() *PosixFile {
	if d.file == nil {
		return nil
	}
	return d.file.NewRef()
}

func (d *Descriptor) SetFlags(flags Flags) {
	d.flags = flags
}

func (d *Descriptor) GetFlags() Flags {
	return d.flags
}

// Dup returns a new descriptor sharing the same underlying resource, with
// the given descriptor flags. The underlying reference count is incremented.
func (d *Descriptor) Dup(flags Flags) *Descriptor {
	dup := &Descriptor{flags: flags}
	if d.legacy != nil {
		dup.legacy = d.legacy.Ref()
	} else {
		dup.file = d.file.NewRef()
	}
	return dup
}

// Free releases exactly the references the descriptor holds: one count on
// the legacy handle, or one count on the PosixFile. Freeing twice is a
// programming fault.
func (d *Descriptor) Free() {
	if d.freed {
		panic("double free of descriptor")
	}
	d.freed = true

	if d.legacy != nil {
		d.legacy.Unref()
	} else {
		d.file.Drop()
	}
}
