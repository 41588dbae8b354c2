package host

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/umbra-sim/umbra/internal/descriptor"
	"github.com/umbra-sim/umbra/internal/event"
)

func TestValidateLegacyKind(t *testing.T) {
	h := NewHost("host-1", event.NewClock())
	proc := h.NewProcess()
	handler := proc.NewThread(0x10000000, func() {}).Handler()

	timerFd, err := proc.Table().Register(
		descriptor.FromLegacy(descriptor.NewLegacyHandle(descriptor.LegacyTimer)))
	require.NoError(t, err)

	legacy, errno := handler.validateLegacy(timerFd, descriptor.LegacyTimer)
	require.Equal(t, syscall.Errno(0), errno)
	require.Equal(t, descriptor.LegacyTimer, legacy.Kind())
	require.Equal(t, timerFd, legacy.Handle())

	// right generation, wrong kind
	_, errno = handler.validateLegacy(timerFd, descriptor.LegacyEpoll)
	require.Equal(t, syscall.EINVAL, errno)

	// missing fd is distinct from a mismatched one
	_, errno = handler.validateLegacy(99, descriptor.LegacyTimer)
	require.Equal(t, syscall.EBADF, errno)

	// a new-generation fd where a legacy handle is expected
	reader, writer := descriptor.NewPipePair(0)
	writer.Drop()
	pipeFd, err := proc.Table().Register(descriptor.FromFile(reader))
	require.NoError(t, err)
	_, errno = handler.validateLegacy(pipeFd, descriptor.LegacyTimer)
	require.Equal(t, syscall.EINVAL, errno)
}
