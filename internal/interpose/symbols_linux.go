//go:build linux

package interpose

import (
	"golang.org/x/sys/unix"
)

// sym builds a table entry for an entry point that dispatches as its own
// syscall; remap is for entry points whose underlying syscall differs from
// their name.
func sym(name string, nr uintptr) Symbol {
	return Symbol{Name: name, Sysno: int64(nr)}
}

func remap(name string, nr uintptr) Symbol {
	return Symbol{Name: name, Sysno: int64(nr)}
}

// interposedSymbols lists the entry points present on every linux platform.
// Classic syscalls that newer architectures dropped (open, pipe, dup2, ...)
// are appended per-arch by archSymbols.
var interposedSymbols = append([]Symbol{
	sym("brk", unix.SYS_BRK),
	sym("clock_gettime", unix.SYS_CLOCK_GETTIME),
	sym("clock_nanosleep", unix.SYS_CLOCK_NANOSLEEP),
	sym("close", unix.SYS_CLOSE),
	sym("dup", unix.SYS_DUP),
	sym("dup3", unix.SYS_DUP3),
	sym("epoll_create1", unix.SYS_EPOLL_CREATE1),
	sym("epoll_ctl", unix.SYS_EPOLL_CTL),
	sym("epoll_pwait", unix.SYS_EPOLL_PWAIT),
	sym("eventfd2", unix.SYS_EVENTFD2),
	sym("exit_group", unix.SYS_EXIT_GROUP),
	sym("fallocate", unix.SYS_FALLOCATE),
	sym("fcntl", unix.SYS_FCNTL),
	sym("fdatasync", unix.SYS_FDATASYNC),
	sym("fsync", unix.SYS_FSYNC),
	sym("ftruncate", unix.SYS_FTRUNCATE),
	sym("futex", unix.SYS_FUTEX),
	sym("getpid", unix.SYS_GETPID),
	sym("getrandom", unix.SYS_GETRANDOM),
	sym("gettid", unix.SYS_GETTID),
	sym("gettimeofday", unix.SYS_GETTIMEOFDAY),
	sym("ioctl", unix.SYS_IOCTL),
	sym("lseek", unix.SYS_LSEEK),
	sym("madvise", unix.SYS_MADVISE),
	sym("mmap", unix.SYS_MMAP),
	sym("mprotect", unix.SYS_MPROTECT),
	sym("mremap", unix.SYS_MREMAP),
	sym("munmap", unix.SYS_MUNMAP),
	sym("nanosleep", unix.SYS_NANOSLEEP),
	sym("openat", unix.SYS_OPENAT),
	sym("pipe2", unix.SYS_PIPE2),
	sym("pread64", unix.SYS_PREAD64),
	sym("preadv", unix.SYS_PREADV),
	sym("preadv2", unix.SYS_PREADV2),
	sym("prlimit64", unix.SYS_PRLIMIT64),
	sym("pwrite64", unix.SYS_PWRITE64),
	sym("pwritev", unix.SYS_PWRITEV),
	sym("pwritev2", unix.SYS_PWRITEV2),
	sym("read", unix.SYS_READ),
	sym("readv", unix.SYS_READV),
	sym("sched_yield", unix.SYS_SCHED_YIELD),
	sym("statx", unix.SYS_STATX),
	sym("timerfd_create", unix.SYS_TIMERFD_CREATE),
	sym("timerfd_gettime", unix.SYS_TIMERFD_GETTIME),
	sym("timerfd_settime", unix.SYS_TIMERFD_SETTIME),
	sym("write", unix.SYS_WRITE),
	sym("writev", unix.SYS_WRITEV),

	sym("accept4", unix.SYS_ACCEPT4),
	sym("bind", unix.SYS_BIND),
	sym("connect", unix.SYS_CONNECT),
	sym("getpeername", unix.SYS_GETPEERNAME),
	sym("getsockname", unix.SYS_GETSOCKNAME),
	sym("getsockopt", unix.SYS_GETSOCKOPT),
	sym("listen", unix.SYS_LISTEN),
	sym("recvfrom", unix.SYS_RECVFROM),
	sym("recvmsg", unix.SYS_RECVMSG),
	sym("sendmsg", unix.SYS_SENDMSG),
	sym("sendto", unix.SYS_SENDTO),
	sym("setsockopt", unix.SYS_SETSOCKOPT),
	sym("shutdown", unix.SYS_SHUTDOWN),
	sym("socket", unix.SYS_SOCKET),

	// aliases that dispatch as a syscall other than their own name
	remap("__fcntl", unix.SYS_FCNTL),
	remap("fallocate64", unix.SYS_FALLOCATE),
	remap("mmap64", unix.SYS_MMAP),
}, archSymbols...)
