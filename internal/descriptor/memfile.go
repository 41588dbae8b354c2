package descriptor

import (
	"syscall"
)

// A MemFile is an in-memory regular file, the simulated counterpart of a
// memfd. Unlike a pipe it is seekable, so it backs the positional read and
// write syscalls, and it never signals would-block.
type MemFile struct {
	data []byte
	pos  int
}

// NewMemFile returns a PosixFile over an empty in-memory regular file,
// holding one owned reference.
func NewMemFile() *PosixFile {
	return NewPosixFile(&MemFile{}, StatusReadable|StatusWritable)
}

func (f *MemFile) Read(dst []byte) (int, syscall.Errno) {
	if f.pos >= len(f.data) {
		// end-of-stream
		return 0, 0
	}
	n := copy(dst, f.data[f.pos:])
	f.pos += n
	return n, 0
}

func (f *MemFile) Write(src []byte) (int, syscall.Errno) {
	n, errno := f.WriteAt(src, int64(f.pos))
	f.pos += n
	return n, errno
}

func (f *MemFile) ReadAt(dst []byte, off int64) (int, syscall.Errno) {
	if off < 0 {
		return 0, syscall.EINVAL
	}
	if off >= int64(len(f.data)) {
		return 0, 0
	}
	return copy(dst, f.data[off:]), 0
}

func (f *MemFile) WriteAt(src []byte, off int64) (int, syscall.Errno) {
	if off < 0 {
		return 0, syscall.EINVAL
	}
	if grown := int(off) + len(src); grown > len(f.data) {
		f.data = append(f.data, make([]byte, grown-len(f.data))...)
	}
	return copy(f.data[off:], src), 0
}

func (f *MemFile) Size() int {
	return len(f.data)
}

func (f *MemFile) Close() {}
