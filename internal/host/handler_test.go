package host_test

import (
	"encoding/binary"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/umbra-sim/umbra/internal/abi"
	"github.com/umbra-sim/umbra/internal/descriptor"
	"github.com/umbra-sim/umbra/internal/event"
	"github.com/umbra-sim/umbra/internal/host"
)

type fixture struct {
	t     *testing.T
	clock *event.Clock
	host  *host.Host
	proc  *host.Process

	nextHeap uintptr
}

// A managedThread drives one thread's syscalls, with a scratch mapping its
// buffer arguments point into and a counter of scheduler wakeups.
type managedThread struct {
	f      *fixture
	thread *host.Thread

	scratch abi.RemotePtr
	wakes   int
}

func newFixture(t *testing.T) *fixture {
	clock := event.NewClock()
	f := &fixture{
		t:        t,
		clock:    clock,
		host:     host.NewHost("host-1", clock),
		nextHeap: 0x10000000,
	}
	f.proc = f.host.NewProcess()
	return f
}

func (f *fixture) newThread() *managedThread {
	f.t.Helper()
	m := &managedThread{f: f}
	m.thread = f.proc.NewThread(f.nextHeap, func() { m.wakes++ })
	f.nextHeap += 0x10000000

	addr, err := m.thread.Memory().HandleMmap(0, 1<<20,
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_PRIVATE|syscall.MAP_ANONYMOUS, -1, 0)
	require.NoError(f.t, err)
	m.scratch = addr
	return m
}

func (m *managedThread) syscall(nr int64, args ...uintptr) abi.SyscallResult {
	sysArgs := abi.SyscallArgs{Number: nr}
	copy(sysArgs.Args[:], args)
	return m.thread.Handler().MakeSyscall(&sysArgs)
}

func (m *managedThread) poke(addr abi.RemotePtr, data []byte) {
	m.f.t.Helper()
	buf, err := m.thread.Memory().WritablePtr(addr, uintptr(len(data)))
	require.NoError(m.f.t, err)
	copy(buf, data)
	m.thread.Memory().Flush()
}

func (m *managedThread) peek(addr abi.RemotePtr, n uintptr) []byte {
	m.f.t.Helper()
	buf, err := m.thread.Memory().ReadablePtr(addr, n)
	require.NoError(m.f.t, err)
	out := make([]byte, n)
	copy(out, buf)
	return out
}

// pipe2 issues the pipe2 syscall and decodes the two fds.
func (m *managedThread) pipe2(flags int32) (rfd, wfd int) {
	m.f.t.Helper()
	fdsPtr := m.scratch + 0x8000
	result := m.syscall(abi.SysPipe2, uintptr(fdsPtr), uintptr(flags))
	require.Equal(m.f.t, abi.KindDone, result.Kind)
	fds := m.peek(fdsPtr, 8)
	return int(binary.LittleEndian.Uint32(fds[0:4])), int(binary.LittleEndian.Uint32(fds[4:8]))
}

func (m *managedThread) write(fd int, data []byte) abi.SyscallResult {
	m.f.t.Helper()
	m.poke(m.scratch+0x100, data)
	return m.syscall(abi.SysWrite, uintptr(fd), uintptr(m.scratch+0x100), uintptr(len(data)))
}

func TestReadBlocksUntilReadable(t *testing.T) {
	f := newFixture(t)
	reader, writer := f.newThread(), f.newThread()
	rfd, wfd := reader.pipe2(0)

	result := reader.syscall(abi.SysRead, uintptr(rfd), uintptr(reader.scratch), 64)
	require.Equal(t, abi.KindBlocked, result.Kind)
	require.True(t, reader.thread.Handler().WasBlocked())
	require.Equal(t, 0, reader.wakes)

	result = writer.write(wfd, []byte("hello"))
	require.Equal(t, abi.KindDone, result.Kind)
	require.Equal(t, uintptr(5), result.Value)
	require.Equal(t, 1, reader.wakes)

	result = reader.syscall(abi.SysRead, uintptr(rfd), uintptr(reader.scratch), 64)
	require.Equal(t, abi.KindDone, result.Kind)
	require.Equal(t, uintptr(5), result.Value)
	require.Equal(t, []byte("hello"), reader.peek(reader.scratch, 5))
	require.False(t, reader.thread.Handler().WasBlocked())
}

func TestReadableWhenClosed(t *testing.T) {
	f := newFixture(t)
	m := f.newThread()
	rfd, wfd := m.pipe2(0)

	result := m.write(wfd, []byte("hello"))
	require.Equal(t, abi.KindDone, result.Kind)

	result = m.syscall(abi.SysClose, uintptr(wfd))
	require.Equal(t, abi.KindDone, result.Kind)

	// buffered bytes survive the close
	result = m.syscall(abi.SysRead, uintptr(rfd), uintptr(m.scratch), 64)
	require.Equal(t, abi.KindDone, result.Kind)
	require.Equal(t, uintptr(5), result.Value)
	require.Equal(t, []byte("hello"), m.peek(m.scratch, 5))

	// drained and closed: end-of-stream, not would-block
	result = m.syscall(abi.SysRead, uintptr(rfd), uintptr(m.scratch), 64)
	require.Equal(t, abi.KindDone, result.Kind)
	require.Equal(t, uintptr(0), result.Value)
}

func TestReadTimeout(t *testing.T) {
	f := newFixture(t)
	m := f.newThread()
	rfd, _ := m.pipe2(0)

	m.thread.Handler().SetListenTimeout(time.Second)
	result := m.syscall(abi.SysRead, uintptr(rfd), uintptr(m.scratch), 64)
	require.Equal(t, abi.KindBlocked, result.Kind)

	f.clock.Advance(2 * time.Second)
	require.Equal(t, 1, m.wakes)

	result = m.syscall(abi.SysRead, uintptr(rfd), uintptr(m.scratch), 64)
	require.Equal(t, abi.KindError, result.Kind)
	require.Equal(t, syscall.EINTR, result.Errno)
	require.False(t, m.thread.Handler().WasBlocked())

	// the block cycle ended; nothing else may fire for it
	f.clock.Advance(time.Hour)
	require.Equal(t, 1, m.wakes)
}

func TestReadinessBeatsTimer(t *testing.T) {
	f := newFixture(t)
	reader, writer := f.newThread(), f.newThread()
	rfd, wfd := reader.pipe2(0)

	reader.thread.Handler().SetListenTimeout(time.Second)
	result := reader.syscall(abi.SysRead, uintptr(rfd), uintptr(reader.scratch), 64)
	require.Equal(t, abi.KindBlocked, result.Kind)

	result = writer.write(wfd, []byte("x"))
	require.Equal(t, abi.KindDone, result.Kind)
	require.Equal(t, 1, reader.wakes)

	result = reader.syscall(abi.SysRead, uintptr(rfd), uintptr(reader.scratch), 64)
	require.Equal(t, abi.KindDone, result.Kind)
	require.Equal(t, uintptr(1), result.Value)

	// the losing timer was disarmed with the block cycle
	f.clock.Advance(time.Hour)
	require.Equal(t, 1, reader.wakes)
}

func TestNonblockingRead(t *testing.T) {
	f := newFixture(t)
	m := f.newThread()
	rfd, _ := m.pipe2(abi.ONonblock)

	result := m.syscall(abi.SysRead, uintptr(rfd), uintptr(m.scratch), 64)
	require.Equal(t, abi.KindError, result.Kind)
	require.Equal(t, syscall.EWOULDBLOCK, result.Errno)
	require.False(t, m.thread.Handler().WasBlocked())
}

func TestWriteBlocksWhenFull(t *testing.T) {
	f := newFixture(t)
	writer, reader := f.newThread(), f.newThread()
	rfd, wfd := writer.pipe2(0)

	// fill the pipe; each call moves at most the syscall IO buffer limit
	written := 0
	for written < descriptor.PipeBufferSize {
		result := writer.syscall(abi.SysWrite, uintptr(wfd), uintptr(writer.scratch), 1<<20)
		require.Equal(t, abi.KindDone, result.Kind)
		require.Equal(t, uintptr(16384), result.Value)
		written += int(result.Value)
	}
	require.Equal(t, descriptor.PipeBufferSize, written)

	result := writer.syscall(abi.SysWrite, uintptr(wfd), uintptr(writer.scratch), 1)
	require.Equal(t, abi.KindBlocked, result.Kind)

	result = reader.syscall(abi.SysRead, uintptr(rfd), uintptr(reader.scratch), 4096)
	require.Equal(t, abi.KindDone, result.Kind)
	require.Equal(t, uintptr(4096), result.Value)
	require.Equal(t, 1, writer.wakes)

	result = writer.syscall(abi.SysWrite, uintptr(wfd), uintptr(writer.scratch), 1)
	require.Equal(t, abi.KindDone, result.Kind)
	require.Equal(t, uintptr(1), result.Value)
}

func TestWriteEPIPE(t *testing.T) {
	f := newFixture(t)
	m := f.newThread()
	rfd, wfd := m.pipe2(0)

	result := m.syscall(abi.SysClose, uintptr(rfd))
	require.Equal(t, abi.KindDone, result.Kind)

	result = m.write(wfd, []byte("x"))
	require.Equal(t, abi.KindError, result.Kind)
	require.Equal(t, syscall.EPIPE, result.Errno)
}

func TestBlockedReadSurvivesClose(t *testing.T) {
	f := newFixture(t)
	reader, other := f.newThread(), f.newThread()
	rfd, wfd := reader.pipe2(0)

	result := reader.syscall(abi.SysRead, uintptr(rfd), uintptr(reader.scratch), 64)
	require.Equal(t, abi.KindBlocked, result.Kind)

	// another thread closes the fd while the read is blocked; the handler
	// retained the file, so the read still completes
	result = other.syscall(abi.SysClose, uintptr(rfd))
	require.Equal(t, abi.KindDone, result.Kind)

	result = other.write(wfd, []byte("late"))
	require.Equal(t, abi.KindDone, result.Kind)
	require.Equal(t, 1, reader.wakes)

	result = reader.syscall(abi.SysRead, uintptr(rfd), uintptr(reader.scratch), 64)
	require.Equal(t, abi.KindDone, result.Kind)
	require.Equal(t, uintptr(4), result.Value)
	require.Equal(t, []byte("late"), reader.peek(reader.scratch, 4))
}

func TestDispatchWhileBlockedPanics(t *testing.T) {
	f := newFixture(t)
	m := f.newThread()
	rfd, _ := m.pipe2(0)

	result := m.syscall(abi.SysRead, uintptr(rfd), uintptr(m.scratch), 64)
	require.Equal(t, abi.KindBlocked, result.Kind)

	require.Panics(t, func() {
		m.syscall(abi.SysWrite, uintptr(rfd), uintptr(m.scratch), 1)
	})
}

func TestThreadTeardownAbandonsBlock(t *testing.T) {
	f := newFixture(t)
	m := f.newThread()
	rfd, wfd := m.pipe2(0)

	m.thread.Handler().SetListenTimeout(time.Second)
	result := m.syscall(abi.SysRead, uintptr(rfd), uintptr(m.scratch), 64)
	require.Equal(t, abi.KindBlocked, result.Kind)

	m.thread.Destroy()

	// neither readiness nor the timer may wake the destroyed handler
	writer := f.proc.Table().Get(wfd).BorrowFile()
	writer.Impl().Write([]byte("x"))
	f.clock.Advance(time.Hour)
	require.Equal(t, 0, m.wakes)
	require.NotNil(t, f.proc.Table().Get(rfd))
}
