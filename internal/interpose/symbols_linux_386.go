//go:build linux && 386

package interpose

import (
	"golang.org/x/sys/unix"
)

// archSymbols holds the 32-bit-only entry points: mmap2 carries page-unit
// offsets and fcntl64 is a distinct syscall here, not an alias.
var archSymbols = []Symbol{
	sym("mmap2", unix.SYS_MMAP2),
	sym("fcntl64", unix.SYS_FCNTL64),
	sym("open", unix.SYS_OPEN),
	sym("pipe", unix.SYS_PIPE),
	sym("dup2", unix.SYS_DUP2),

	remap("open64", unix.SYS_OPEN),
}
