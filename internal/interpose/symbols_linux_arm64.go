//go:build linux && arm64

package interpose

import (
	"golang.org/x/sys/unix"
)

// arm64 never had the classic syscalls; the "64" aliases still exist in libc
// and dispatch as the modern base syscalls.
var archSymbols = []Symbol{
	remap("fcntl64", unix.SYS_FCNTL),
	remap("open64", unix.SYS_OPENAT),
}
