// Package host holds the per-host simulation context: the host itself, its
// processes and threads, and the per-thread syscall handler that gives every
// managed thread its POSIX surface.
package host

import (
	"log/slog"

	"github.com/umbra-sim/umbra/internal/counter"
	"github.com/umbra-sim/umbra/internal/descriptor"
	"github.com/umbra-sim/umbra/internal/event"
	"github.com/umbra-sim/umbra/internal/mem"
)

// A Host is one simulated machine. All of its processes share the host's
// clock; syscall accounting from destroyed handlers is merged into the
// host's counter.
type Host struct {
	name  string
	clock *event.Clock
	log   *slog.Logger

	syscallCounts *counter.Counter

	processes map[int]*Process
	nextPid   int
}

func NewHost(name string, clock *event.Clock) *Host {
	return NewHostWithLogger(name, clock, slog.Default())
}

// NewHostWithLogger creates a host that logs through log, typically built
// with NewLogger so records carry simulated timestamps. The host's name is
// attached to every record.
func NewHostWithLogger(name string, clock *event.Clock, log *slog.Logger) *Host {
	return &Host{
		name:          name,
		clock:         clock,
		log:           log.With("host", name),
		syscallCounts: counter.New(),
		processes:     make(map[int]*Process),
		nextPid:       1000,
	}
}

func (h *Host) Name() string {
	return h.name
}

func (h *Host) Clock() *event.Clock {
	return h.clock
}

// SyscallCounts returns the host-wide syscall accounting. Counts from live
// handlers are merged in only when those handlers are destroyed.
func (h *Host) SyscallCounts() *counter.Counter {
	return h.syscallCounts
}

func (h *Host) NewProcess() *Process {
	p := &Process{
		host:    h,
		pid:     h.nextPid,
		table:   descriptor.NewTable(),
		threads: make(map[int]*Thread),
	}
	p.nextTid = p.pid
	h.nextPid++
	h.processes[p.pid] = p
	return p
}

// A Process is one managed process: an fd table shared by its threads.
type Process struct {
	host *Host
	pid  int

	table   *descriptor.Table
	threads map[int]*Thread
	nextTid int
}

func (p *Process) Pid() int {
	return p.pid
}

func (p *Process) Host() *Host {
	return p.host
}

// Table returns the process's file descriptor table.
func (p *Process) Table() *descriptor.Table {
	return p.table
}

// NewThread creates a managed thread with its own address-space view rooted
// at heapBase and its own syscall handler. wake is invoked when a syscall
// blocked on this thread becomes runnable again; the scheduler responds by
// re-dispatching the same syscall.
func (p *Process) NewThread(heapBase uintptr, wake func()) *Thread {
	t := &Thread{
		process: p,
		tid:     p.nextTid,
		mem:     mem.NewMemoryManager(heapBase),
	}
	p.nextTid++
	t.handler = newSyscallHandler(t, wake)
	p.threads[t.tid] = t
	return t
}

// Destroy tears the process down: every thread is destroyed and the fd table
// is released.
func (p *Process) Destroy() {
	for _, t := range p.threads {
		t.Destroy()
	}
	p.table.FreeAll()
	delete(p.host.processes, p.pid)
}

// A Thread is one managed thread. Its handler and memory manager are
// exclusively scoped to it and require no locking.
type Thread struct {
	process *Process
	tid     int

	mem     *mem.MemoryManager
	handler *SyscallHandler

	destroyed bool
}

func (t *Thread) Tid() int {
	return t.tid
}

func (t *Thread) Process() *Process {
	return t.process
}

func (t *Thread) Memory() *mem.MemoryManager {
	return t.mem
}

func (t *Thread) Handler() *SyscallHandler {
	return t.handler
}

// Destroy releases the thread's reference on its handler. A handler with an
// in-flight block abandons it without leaking the timer or listener.
func (t *Thread) Destroy() {
	if t.destroyed {
		panic("double destroy of thread")
	}
	t.destroyed = true
	t.handler.Unref()
	delete(t.process.threads, t.tid)
}
