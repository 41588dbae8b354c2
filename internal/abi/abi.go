// Package abi holds the types shared between the interposition shim and the
// syscall handler.
//
// Every intercepted libc entry point collapses into a (number, six registers)
// tuple. The shim produces SyscallArgs, the handler consumes them and answers
// with a SyscallResult.
package abi

import "syscall"

// RemotePtr is a virtual address in the managed process's address space. It is
// only meaningful to that process; the simulator must resolve it through a
// MemoryManager before dereferencing.
type RemotePtr uintptr

func (p RemotePtr) IsNull() bool {
	return p == 0
}

// SyscallArgs is the uniform argument tuple produced by the shim trap.
type SyscallArgs struct {
	Number int64
	Args   [6]uintptr
}

func (a *SyscallArgs) Int(i int) int64 {
	return int64(a.Args[i])
}

func (a *SyscallArgs) Fd(i int) int {
	return int(int32(a.Args[i]))
}

func (a *SyscallArgs) Ptr(i int) RemotePtr {
	return RemotePtr(a.Args[i])
}

func (a *SyscallArgs) Size(i int) uintptr {
	return a.Args[i]
}

// ResultKind distinguishes the three terminal answers of a dispatch.
type ResultKind int

const (
	// KindDone means the syscall completed and Value holds its return value.
	KindDone ResultKind = iota
	// KindError means the syscall failed and Errno holds the POSIX error.
	KindError
	// KindBlocked means the syscall cannot complete yet. The handler has
	// registered for a wakeup and the scheduler must re-dispatch the same
	// args later.
	KindBlocked
)

// SyscallResult is the outcome of dispatching one syscall.
type SyscallResult struct {
	Kind  ResultKind
	Value uintptr
	Errno syscall.Errno
}

func Done(value uintptr) SyscallResult {
	return SyscallResult{Kind: KindDone, Value: value}
}

func Err(errno syscall.Errno) SyscallResult {
	return SyscallResult{Kind: KindError, Errno: errno}
}

func Blocked() SyscallResult {
	return SyscallResult{Kind: KindBlocked}
}

// Ret converts the result to the raw (r1, errno) pair the shim hands back to
// the managed process. Blocked results never reach the shim.
func (r SyscallResult) Ret() (uintptr, syscall.Errno) {
	switch r.Kind {
	case KindDone:
		return r.Value, 0
	case KindError:
		return ^uintptr(0), r.Errno
	default:
		panic("blocked result leaked to shim")
	}
}
