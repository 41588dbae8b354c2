package abi

import "fmt"

// Syscall numbers used across the trap boundary. The shim translates
// whatever entry point was called into this numbering (x86-64 Linux), so
// the handler dispatches on one canonical set regardless of platform.
const (
	SysRead     int64 = 0
	SysWrite    int64 = 1
	SysClose    int64 = 3
	SysMmap     int64 = 9
	SysMprotect int64 = 10
	SysMunmap   int64 = 11
	SysBrk      int64 = 12
	SysPread64  int64 = 17
	SysPwrite64 int64 = 18
	SysPipe     int64 = 22
	SysMremap   int64 = 25
	SysDup      int64 = 32
	SysDup2     int64 = 33
	SysDup3     int64 = 292
	SysPipe2    int64 = 293
)

// Open-file flag values in the canonical numbering, as the shim passes them.
const (
	ONonblock = 0x800
	ODirect   = 0x4000
	OCloexec  = 0x80000
)

var sysNames = map[int64]string{
	SysRead:     "read",
	SysWrite:    "write",
	SysClose:    "close",
	SysMmap:     "mmap",
	SysMprotect: "mprotect",
	SysMunmap:   "munmap",
	SysBrk:      "brk",
	SysPread64:  "pread64",
	SysPwrite64: "pwrite64",
	SysPipe:     "pipe",
	SysMremap:   "mremap",
	SysDup:      "dup",
	SysDup2:     "dup2",
	SysDup3:     "dup3",
	SysPipe2:    "pipe2",
}

// SyscallName returns the conventional name of a syscall number, or a
// numeric form for numbers outside the emulated set.
func SyscallName(nr int64) string {
	if name, ok := sysNames[nr]; ok {
		return name
	}
	return fmt.Sprintf("syscall_%d", nr)
}
