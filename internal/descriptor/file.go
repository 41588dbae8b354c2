package descriptor

import (
	"log/slog"
	"sync/atomic"
	"syscall"
)

// A StatusListener is notified when a monitored status bit of a file
// transitions. Listeners are reference-counted independently of the files
// they are registered on: registration takes a reference, removal releases
// it.
type StatusListener struct {
	refs atomic.Int64

	// monitoring selects which status bits trigger a notification.
	monitoring Status
	notify     func(current, transitions Status)
}

func NewStatusListener(monitoring Status, notify func(current, transitions Status)) *StatusListener {
	l := &StatusListener{
		monitoring: monitoring,
		notify:     notify,
	}
	l.refs.Store(1)
	return l
}

func (l *StatusListener) Ref() *StatusListener {
	if l.refs.Add(1) <= 1 {
		panic("ref of dead status listener")
	}
	return l
}

func (l *StatusListener) Unref() {
	if l.refs.Add(-1) < 0 {
		panic("unref of dead status listener")
	}
}

func (l *StatusListener) onStatusChanged(current, transitions Status) {
	if transitions&l.monitoring != 0 {
		l.notify(current, transitions)
	}
}

// FileStatusFlags mirror the open-file flags that affect syscall semantics.
// They are shared by all descriptors of the same open file, like O_NONBLOCK.
type FileStatusFlags uint32

const (
	FileNonblock FileStatusFlags = 1 << iota
	FileDirect
)

// FileImpl is the behavior behind a PosixFile. Implementations return POSIX
// errnos directly; blocking is decided by the syscall handler, not here, so
// an operation that cannot make progress returns EWOULDBLOCK.
type FileImpl interface {
	Read(dst []byte) (int, syscall.Errno)
	Write(src []byte) (int, syscall.Errno)
	Close()
}

// FileReaderAt and FileWriterAt are implemented by file implementations that
// support positional IO. Files without them are non-seekable; positional
// reads and writes on those fail with ESPIPE.
type FileReaderAt interface {
	ReadAt(dst []byte, off int64) (int, syscall.Errno)
}

type FileWriterAt interface {
	WriteAt(src []byte, off int64) (int, syscall.Errno)
}

// A PosixFile is a reference-counted file object shared between descriptors,
// possibly across hosts after duplication. The reference count is the only
// mutation permitted from non-owning holders; content is mutated only through
// the single logical owner (the dispatching syscall handler).
type PosixFile struct {
	refs atomic.Int64

	status    Status
	flags     FileStatusFlags
	listeners []*StatusListener

	impl FileImpl
}

// NewPosixFile wraps impl with an initial status and a single owned
// reference.
func NewPosixFile(impl FileImpl, status Status) *PosixFile {
	f := &PosixFile{
		status: status | StatusActive,
		impl:   impl,
	}
	f.refs.Store(1)
	return f
}

// NewRef acquires an additional reference. The caller owns the increment and
// must release it with Drop.
func (f *PosixFile) NewRef() *PosixFile {
	if f.refs.Add(1) <= 1 {
		panic("ref of dead posix file")
	}
	return f
}

// Drop releases one reference. Dropping the last reference closes the
// underlying implementation and releases any remaining listeners. Dropping
// more references than were acquired is a programming fault.
func (f *PosixFile) Drop() {
	refs := f.refs.Add(-1)
	if refs < 0 {
		panic("drop of dead posix file")
	}
	if refs > 0 {
		return
	}

	if !f.status.Has(StatusClosed) {
		f.impl.Close()
		f.AdjustStatus(StatusClosed, StatusActive)
	}
	for _, l := range f.listeners {
		l.Unref()
	}
	f.listeners = nil
}

func (f *PosixFile) Status() Status {
	return f.status
}

func (f *PosixFile) Impl() FileImpl {
	return f.impl
}

func (f *PosixFile) StatusFlags() FileStatusFlags {
	return f.flags
}

func (f *PosixFile) SetStatusFlags(flags FileStatusFlags) {
	f.flags = flags
}

// AddListener registers a listener, taking a reference on it.
func (f *PosixFile) AddListener(l *StatusListener) {
	f.listeners = append(f.listeners, l.Ref())
}

// RemoveListener deregisters a listener and releases the reference taken by
// AddListener. Removing a listener that is not registered is a no-op.
func (f *PosixFile) RemoveListener(l *StatusListener) {
	for i, got := range f.listeners {
		if got == l {
			last := len(f.listeners) - 1
			f.listeners[i] = f.listeners[last]
			f.listeners[last] = nil
			f.listeners = f.listeners[:last]
			l.Unref()
			return
		}
	}
}

// AdjustStatus sets and clears status bits and notifies every registered
// listener exactly once for the bits that actually transitioned.
func (f *PosixFile) AdjustStatus(set, unset Status) {
	old := f.status
	f.status = (f.status | set) &^ unset
	transitions := old ^ f.status
	if transitions == 0 {
		return
	}

	slog.Debug("file status changed",
		"status", f.status, "transitions", transitions)

	// listeners may deregister themselves (or others) from inside the
	// callback, so iterate over a snapshot
	snapshot := make([]*StatusListener, len(f.listeners))
	copy(snapshot, f.listeners)
	for _, l := range snapshot {
		l.onStatusChanged(f.status, transitions)
	}
}
