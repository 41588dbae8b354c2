package host

import (
	"errors"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/umbra-sim/umbra/internal/abi"
	"github.com/umbra-sim/umbra/internal/counter"
	"github.com/umbra-sim/umbra/internal/descriptor"
	"github.com/umbra-sim/umbra/internal/event"
	"github.com/umbra-sim/umbra/internal/mem"
)

// syscallIOBufSize bounds how many bytes a single read or write transfers.
// Larger requests complete partially; the managed program loops as it would
// on any short read/write.
const syscallIOBufSize = 16384

// A SyscallHandler is the per-thread syscall state machine. It owns one
// blocking slot: at most one syscall is outstanding at a time, and while it
// is outstanding the handler holds the resources needed to retry it (the
// active file, a status listener, optionally a timer).
//
// The handler never suspends a goroutine. A syscall that cannot complete
// returns a Blocked result; the scheduler re-invokes MakeSyscall with the
// same arguments once the handler's wake callback fires. Re-dispatch is
// idempotent with respect to the retained resources.
type SyscallHandler struct {
	thread *Thread

	refs atomic.Int64

	// blockedSyscallNR is the number of the outstanding blocked syscall,
	// negative when idle
	blockedSyscallNR int64

	// resources retained for the current block cycle
	activeFile *descriptor.PosixFile
	listener   *descriptor.StatusListener
	// listenerFile is borrowed: activeFile holds the reference that keeps
	// it alive for the cycle
	listenerFile *descriptor.PosixFile
	timer        *event.Timer
	timedOut     bool

	// listen timeout configured for the next block cycles; zero means
	// block without a deadline
	listenTimeout time.Duration

	// wake asks the scheduler to re-dispatch the blocked syscall
	wake func()

	// per-handler accounting, merged into the host counter on destroy
	counts *counter.Counter
}

func newSyscallHandler(t *Thread, wake func()) *SyscallHandler {
	h := &SyscallHandler{
		thread:           t,
		blockedSyscallNR: -1,
		wake:             wake,
		counts:           counter.New(),
	}
	h.refs.Store(1)
	return h
}

func (h *SyscallHandler) Ref() *SyscallHandler {
	if h.refs.Add(1) <= 1 {
		panic("ref of dead syscall handler")
	}
	return h
}

// Unref releases one reference. Dropping the last reference abandons any
// pending block and merges the handler's syscall counts into the host.
func (h *SyscallHandler) Unref() {
	refs := h.refs.Add(-1)
	if refs < 0 {
		panic("unref of dead syscall handler")
	}
	if refs > 0 {
		return
	}

	if h.WasBlocked() {
		h.unblock()
	}
	h.thread.process.host.syscallCounts.AddCounter(h.counts)
	h.thread.process.host.log.Debug("syscall handler destroyed",
		"thread", h.thread.tid, "counts", h.counts)
}

// Counts returns the handler's own syscall accounting.
func (h *SyscallHandler) Counts() *counter.Counter {
	return h.counts
}

// SetListenTimeout bounds how long subsequent blocking syscalls wait before
// failing with EINTR. A zero duration removes the bound.
func (h *SyscallHandler) SetListenTimeout(d time.Duration) {
	h.listenTimeout = d
}

// WasBlocked reports whether the handler is in the middle of a block cycle,
// waiting for its wake callback or already being re-dispatched.
func (h *SyscallHandler) WasBlocked() bool {
	return h.blockedSyscallNR >= 0
}

// isListenTimeoutPending reports whether a timeout is armed for the current
// block cycle.
func (h *SyscallHandler) isListenTimeoutPending() bool {
	return h.timer != nil && h.timer.Armed()
}

// didListenTimeoutExpire reports whether the current block cycle was ended by
// its timeout rather than by readiness. Only meaningful during re-dispatch.
func (h *SyscallHandler) didListenTimeoutExpire() bool {
	return h.timedOut
}

// MakeSyscall dispatches one syscall. The result is Done or Err for a
// terminal outcome, or Blocked, in which case the caller must re-invoke with
// identical arguments after the wake callback fires.
func (h *SyscallHandler) MakeSyscall(args *abi.SyscallArgs) abi.SyscallResult {
	wasBlocked := h.WasBlocked()
	if wasBlocked && args.Number != h.blockedSyscallNR {
		panic("dispatch of a different syscall while blocked")
	}

	name := abi.SyscallName(args.Number)
	if !wasBlocked {
		h.counts.AddValue(name, 1)
	}

	log := h.thread.process.host.log
	log.Debug("syscall", "thread", h.thread.tid, "syscall", name,
		"blocked", wasBlocked)

	result := h.dispatch(args)

	switch result.Kind {
	case abi.KindBlocked:
		if !wasBlocked {
			h.blockedSyscallNR = args.Number
		}
		// views handed out for this attempt were never filled
		h.thread.mem.Discard()
		log.Debug("syscall blocked", "thread", h.thread.tid, "syscall", name,
			"timeoutPending", h.isListenTimeoutPending())
	default:
		// any terminal result ends the block cycle and releases the
		// retained active file, whether or not the syscall ever blocked
		h.unblock()
		// straddling memory views written by the syscall reach the
		// managed address space here
		h.thread.mem.Flush()
	}
	return result
}

func (h *SyscallHandler) dispatch(args *abi.SyscallArgs) abi.SyscallResult {
	switch args.Number {
	case abi.SysRead:
		return h.read(args, -1)
	case abi.SysPread64:
		return h.read(args, args.Int(3))
	case abi.SysWrite:
		return h.write(args, -1)
	case abi.SysPwrite64:
		return h.write(args, args.Int(3))
	case abi.SysClose:
		return h.close(args)
	case abi.SysPipe:
		return h.pipe(args.Ptr(0), 0)
	case abi.SysPipe2:
		return h.pipe(args.Ptr(0), int32(args.Int(1)))
	case abi.SysDup:
		return h.dup(args)
	case abi.SysDup2:
		return h.dup2(args.Fd(0), args.Fd(1), false, 0)
	case abi.SysDup3:
		return h.dup2(args.Fd(0), args.Fd(1), true, int32(args.Int(2)))
	case abi.SysBrk:
		return h.brk(args)
	case abi.SysMmap:
		return h.mmap(args)
	case abi.SysMunmap:
		return h.munmap(args)
	case abi.SysMremap:
		return h.mremap(args)
	case abi.SysMprotect:
		return h.mprotect(args)
	default:
		return abi.Err(syscall.ENOSYS)
	}
}

// blockOnFile registers the handler for a status transition on file and, if a
// listen timeout is configured, arms the timer. Calling it again for the same
// block cycle is a no-op so re-dispatch attempts that would block again keep
// the existing registration.
func (h *SyscallHandler) blockOnFile(file *descriptor.PosixFile, status descriptor.Status) abi.SyscallResult {
	if h.listener == nil {
		h.listener = descriptor.NewStatusListener(status, func(current, transitions descriptor.Status) {
			h.onReady()
		})
		file.AddListener(h.listener)
		h.listenerFile = file
	}
	if h.listenTimeout > 0 && h.timer == nil {
		h.timer = h.thread.process.host.clock.AfterFunc(h.listenTimeout, h.onTimeout)
	}
	return abi.Blocked()
}

// onReady and onTimeout race for the same block cycle; whichever fires first
// tears down both registrations, so the loser never observes the cycle and
// the handler wakes exactly once.

func (h *SyscallHandler) onReady() {
	h.unlisten()
	h.wake()
}

func (h *SyscallHandler) onTimeout() {
	h.timedOut = true
	h.unlisten()
	h.wake()
}

// unlisten removes the listener registration and disarms the timer. Safe to
// call when neither exists.
func (h *SyscallHandler) unlisten() {
	if h.listener != nil {
		h.listenerFile.RemoveListener(h.listener)
		h.listener.Unref()
		h.listener = nil
		h.listenerFile = nil
	}
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

// unblock ends the current block cycle, releasing every retained resource
// exactly once.
func (h *SyscallHandler) unblock() {
	h.unlisten()
	h.timedOut = false
	h.blockedSyscallNR = -1
	if h.activeFile != nil {
		h.activeFile.Drop()
		h.activeFile = nil
	}
}

// validateFile resolves fd to the reference-counted file it designates.
// A missing fd and a wrong-generation fd fail distinctly.
func (h *SyscallHandler) validateFile(fd int) (*descriptor.PosixFile, syscall.Errno) {
	d := h.thread.process.table.Get(fd)
	if d == nil {
		return nil, syscall.EBADF
	}
	file := d.BorrowFile()
	if file == nil {
		// legacy descriptor where a file was expected
		return nil, syscall.EINVAL
	}
	return file, 0
}

// validateLegacy resolves fd to a legacy handle of the expected kind. A
// missing fd fails with EBADF; a new-generation fd, or a handle of another
// kind, fails with EINVAL.
func (h *SyscallHandler) validateLegacy(fd int, kind descriptor.LegacyKind) (*descriptor.LegacyHandle, syscall.Errno) {
	d := h.thread.process.table.Get(fd)
	if d == nil {
		return nil, syscall.EBADF
	}
	legacy := d.AsLegacy()
	if legacy == nil || legacy.Kind() != kind {
		return nil, syscall.EINVAL
	}
	return legacy, 0
}

// acquireActiveFile resolves the file a read/write style syscall operates on.
// On first dispatch it takes a reference and retains it for the whole block
// cycle, so a concurrent close or dup2 over the fd cannot swap the file
// between attempts.
func (h *SyscallHandler) acquireActiveFile(fd int) (*descriptor.PosixFile, syscall.Errno) {
	if h.activeFile != nil {
		return h.activeFile, 0
	}
	file, errno := h.validateFile(fd)
	if errno != 0 {
		return nil, errno
	}
	h.activeFile = file.NewRef()
	return h.activeFile, 0
}

// errnoOf maps pointer-resolution failures and errno-shaped errors onto the
// errno the managed program observes.
func errnoOf(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, mem.ErrInvalidAddress):
		return syscall.EFAULT
	case errors.Is(err, mem.ErrPermission):
		return syscall.EACCES
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return syscall.EINVAL
}
