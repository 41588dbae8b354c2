package host

import (
	"encoding/binary"
	"syscall"

	"github.com/umbra-sim/umbra/internal/abi"
	"github.com/umbra-sim/umbra/internal/descriptor"
)

// read handles read(2) and, with offset >= 0, pread64(2).
//
// On first dispatch the target file is resolved and retained; a blocked read
// keeps operating on that file even if the fd is closed or replaced in the
// meantime. A closed descriptor with buffered data still reads it out;
// end-of-stream surfaces only once the data is exhausted.
func (h *SyscallHandler) read(args *abi.SyscallArgs, offset int64) abi.SyscallResult {
	fd, bufPtr, count := args.Fd(0), args.Ptr(1), args.Size(2)

	file, errno := h.acquireActiveFile(fd)
	if errno != 0 {
		return abi.Err(errno)
	}

	if h.WasBlocked() && h.didListenTimeoutExpire() {
		return abi.Err(syscall.EINTR)
	}

	// a zero-length read completes immediately, even on an empty pipe
	if count == 0 {
		return abi.Done(0)
	}
	if count > syscallIOBufSize {
		count = syscallIOBufSize
	}
	buf, err := h.thread.mem.WritablePtr(bufPtr, count)
	if err != nil {
		return abi.Err(errnoOf(err))
	}

	var n int
	if offset >= 0 {
		readerAt, ok := file.Impl().(descriptor.FileReaderAt)
		if !ok {
			// positional IO on a non-seekable file
			return abi.Err(syscall.ESPIPE)
		}
		n, errno = readerAt.ReadAt(buf, offset)
	} else {
		n, errno = file.Impl().Read(buf)
	}

	if errno == syscall.EWOULDBLOCK {
		if file.StatusFlags()&descriptor.FileNonblock != 0 {
			return abi.Err(syscall.EWOULDBLOCK)
		}
		return h.blockOnFile(file, descriptor.StatusReadable)
	}
	if errno != 0 {
		return abi.Err(errno)
	}
	return abi.Done(uintptr(n))
}

// write handles write(2) and, with offset >= 0, pwrite64(2).
func (h *SyscallHandler) write(args *abi.SyscallArgs, offset int64) abi.SyscallResult {
	fd, bufPtr, count := args.Fd(0), args.Ptr(1), args.Size(2)

	file, errno := h.acquireActiveFile(fd)
	if errno != 0 {
		return abi.Err(errno)
	}

	if h.WasBlocked() && h.didListenTimeoutExpire() {
		return abi.Err(syscall.EINTR)
	}

	// a zero-length write completes immediately, even on a full pipe
	if count == 0 {
		return abi.Done(0)
	}
	if count > syscallIOBufSize {
		count = syscallIOBufSize
	}
	buf, err := h.thread.mem.ReadablePtr(bufPtr, count)
	if err != nil {
		return abi.Err(errnoOf(err))
	}

	var n int
	if offset >= 0 {
		writerAt, ok := file.Impl().(descriptor.FileWriterAt)
		if !ok {
			return abi.Err(syscall.ESPIPE)
		}
		n, errno = writerAt.WriteAt(buf, offset)
	} else {
		n, errno = file.Impl().Write(buf)
	}

	if errno == syscall.EWOULDBLOCK {
		if file.StatusFlags()&descriptor.FileNonblock != 0 {
			return abi.Err(syscall.EWOULDBLOCK)
		}
		return h.blockOnFile(file, descriptor.StatusWritable)
	}
	if errno != 0 {
		return abi.Err(errno)
	}
	return abi.Done(uintptr(n))
}

func (h *SyscallHandler) close(args *abi.SyscallArgs) abi.SyscallResult {
	d := h.thread.process.table.Deregister(args.Fd(0))
	if d == nil {
		return abi.Err(syscall.EBADF)
	}
	d.Free()
	return abi.Done(0)
}

// pipe handles pipe(2) and pipe2(2). The two fds are written to the managed
// process's fdsPtr.
func (h *SyscallHandler) pipe(fdsPtr abi.RemotePtr, flags int32) abi.SyscallResult {
	if flags&^(abi.ONonblock|abi.ODirect|abi.OCloexec) != 0 {
		return abi.Err(syscall.EINVAL)
	}

	// fault on the result pointer before creating anything
	buf, err := h.thread.mem.WritablePtr(fdsPtr, 8)
	if err != nil {
		return abi.Err(errnoOf(err))
	}

	var statusFlags descriptor.FileStatusFlags
	if flags&abi.ONonblock != 0 {
		statusFlags |= descriptor.FileNonblock
	}
	if flags&abi.ODirect != 0 {
		statusFlags |= descriptor.FileDirect
	}
	var descFlags descriptor.Flags
	if flags&abi.OCloexec != 0 {
		descFlags = descriptor.FlagCloExec
	}

	reader, writer := descriptor.NewPipePair(statusFlags)
	dr := descriptor.FromFile(reader)
	dw := descriptor.FromFile(writer)
	dr.SetFlags(descFlags)
	dw.SetFlags(descFlags)

	table := h.thread.process.table
	rfd, err := table.Register(dr)
	if err != nil {
		dr.Free()
		dw.Free()
		return abi.Err(errnoOf(err))
	}
	wfd, err := table.Register(dw)
	if err != nil {
		table.Deregister(rfd)
		dr.Free()
		dw.Free()
		return abi.Err(errnoOf(err))
	}

	binary.LittleEndian.PutUint32(buf[0:4], uint32(rfd))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(wfd))
	return abi.Done(0)
}

func (h *SyscallHandler) dup(args *abi.SyscallArgs) abi.SyscallResult {
	d := h.thread.process.table.Get(args.Fd(0))
	if d == nil {
		return abi.Err(syscall.EBADF)
	}
	// dup clears close-on-exec on the copy
	dup := d.Dup(0)
	fd, err := h.thread.process.table.Register(dup)
	if err != nil {
		dup.Free()
		return abi.Err(errnoOf(err))
	}
	return abi.Done(uintptr(fd))
}

// dup2 handles dup2(2) and, with isDup3, dup3(2). The two differ on
// oldfd == newfd and on flag support.
func (h *SyscallHandler) dup2(oldfd, newfd int, isDup3 bool, flags int32) abi.SyscallResult {
	d := h.thread.process.table.Get(oldfd)
	if d == nil {
		return abi.Err(syscall.EBADF)
	}
	if oldfd == newfd {
		if isDup3 {
			return abi.Err(syscall.EINVAL)
		}
		return abi.Done(uintptr(newfd))
	}
	if newfd < 0 || newfd >= descriptor.MaxDescriptors {
		return abi.Err(syscall.EBADF)
	}

	var descFlags descriptor.Flags
	if isDup3 {
		if flags&^abi.OCloexec != 0 {
			return abi.Err(syscall.EINVAL)
		}
		if flags&abi.OCloexec != 0 {
			descFlags = descriptor.FlagCloExec
		}
	}

	replaced := h.thread.process.table.RegisterAt(d.Dup(descFlags), newfd)
	if replaced != nil {
		replaced.Free()
	}
	return abi.Done(uintptr(newfd))
}

func (h *SyscallHandler) brk(args *abi.SyscallArgs) abi.SyscallResult {
	newBrk, err := h.thread.mem.HandleBrk(args.Ptr(0))
	if err != nil {
		return abi.Err(errnoOf(err))
	}
	return abi.Done(uintptr(newBrk))
}

func (h *SyscallHandler) mmap(args *abi.SyscallArgs) abi.SyscallResult {
	addr, err := h.thread.mem.HandleMmap(args.Ptr(0), args.Size(1),
		int32(args.Int(2)), int32(args.Int(3)), int32(args.Int(4)), args.Int(5))
	if err != nil {
		return abi.Err(errnoOf(err))
	}
	return abi.Done(uintptr(addr))
}

func (h *SyscallHandler) munmap(args *abi.SyscallArgs) abi.SyscallResult {
	if err := h.thread.mem.HandleMunmap(args.Ptr(0), args.Size(1)); err != nil {
		return abi.Err(errnoOf(err))
	}
	return abi.Done(0)
}

func (h *SyscallHandler) mremap(args *abi.SyscallArgs) abi.SyscallResult {
	addr, err := h.thread.mem.HandleMremap(args.Ptr(0), args.Size(1),
		args.Size(2), int32(args.Int(3)), args.Ptr(4))
	if err != nil {
		return abi.Err(errnoOf(err))
	}
	return abi.Done(uintptr(addr))
}

func (h *SyscallHandler) mprotect(args *abi.SyscallArgs) abi.SyscallResult {
	if err := h.thread.mem.HandleMprotect(args.Ptr(0), args.Size(1), int32(args.Int(2))); err != nil {
		return abi.Err(errnoOf(err))
	}
	return abi.Done(0)
}
