//go:build linux && amd64

package interpose

import (
	"golang.org/x/sys/unix"
)

// archSymbols holds the classic entry points whose syscalls exist on amd64
// but were dropped from newer architectures, plus the "64" aliases that
// dispatch as their unsuffixed base syscall.
var archSymbols = []Symbol{
	sym("access", unix.SYS_ACCESS),
	sym("accept", unix.SYS_ACCEPT),
	sym("alarm", unix.SYS_ALARM),
	sym("creat", unix.SYS_CREAT),
	sym("dup2", unix.SYS_DUP2),
	sym("epoll_create", unix.SYS_EPOLL_CREATE),
	sym("epoll_wait", unix.SYS_EPOLL_WAIT),
	sym("eventfd", unix.SYS_EVENTFD),
	sym("open", unix.SYS_OPEN),
	sym("pause", unix.SYS_PAUSE),
	sym("pipe", unix.SYS_PIPE),
	sym("poll", unix.SYS_POLL),
	sym("select", unix.SYS_SELECT),
	sym("time", unix.SYS_TIME),
	sym("unlink", unix.SYS_UNLINK),

	remap("creat64", unix.SYS_CREAT),
	remap("fcntl64", unix.SYS_FCNTL),
	remap("open64", unix.SYS_OPEN),
}
