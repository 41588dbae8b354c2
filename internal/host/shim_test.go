package host_test

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/umbra-sim/umbra/internal/abi"
	"github.com/umbra-sim/umbra/internal/interpose"
)

// TestShimRoundTrip wires the interposition shim to a handler through a
// minimal scheduler loop: blocked dispatches pump simulated time forward
// until the handler wakes, then re-dispatch the same arguments.
func TestShimRoundTrip(t *testing.T) {
	f := newFixture(t)
	m := f.newThread()

	woken := false
	shim := interpose.New(func(args *abi.SyscallArgs) (uintptr, syscall.Errno) {
		for {
			result := m.thread.Handler().MakeSyscall(args)
			if result.Kind != abi.KindBlocked {
				return result.Ret()
			}
			wakes := m.wakes
			for m.wakes == wakes {
				deadline, ok := f.clock.NextDeadline()
				require.True(t, ok, "blocked with nothing scheduled")
				f.clock.AdvanceTo(deadline)
			}
			woken = true
		}
	})

	rfd, wfd := m.pipe2(0)

	// data arrives one simulated second from now
	f.clock.AfterFunc(time.Second, func() {
		writer := f.proc.Table().Get(wfd).BorrowFile()
		writer.Impl().Write([]byte("ping"))
	})

	value, errno := shim.Trap(abi.SysRead, uintptr(rfd), uintptr(m.scratch), 64)
	require.Equal(t, syscall.Errno(0), errno)
	require.Equal(t, uintptr(4), value)
	require.True(t, woken)
	require.Equal(t, []byte("ping"), m.peek(m.scratch, 4))

	// a blocking call under a listen timeout surfaces EINTR through the shim
	m.thread.Handler().SetListenTimeout(time.Second)
	_, errno = shim.Trap(abi.SysRead, uintptr(rfd), uintptr(m.scratch), 64)
	require.Equal(t, syscall.EINTR, errno)
}
