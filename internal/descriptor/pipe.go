package descriptor

import (
	"syscall"

	"github.com/umbra-sim/umbra/internal/bytequeue"
)

const (
	// PipeBufferSize is the capacity of a pipe's shared buffer. Writes past
	// this limit would block.
	PipeBufferSize = 65536

	pipeChunkSize = 4096
)

// pipeShared is the buffer shared by the two ends of a pipe. It keeps
// backlinks to both PosixFiles so that any mutation can push status
// transitions to listeners on either end.
type pipeShared struct {
	queue       *bytequeue.ByteQueue
	readClosed  bool
	writeClosed bool

	reader *PosixFile
	writer *PosixFile
}

func (s *pipeShared) space() int {
	return PipeBufferSize - s.queue.Len()
}

// updateStatus recomputes the readiness bits of both ends after the shared
// state changed. Each call notifies listeners only for bits that actually
// transitioned.
func (s *pipeShared) updateStatus() {
	// the read end stays readable while data is buffered, even after
	// either end closed; once drained, end-of-stream is observable as
	// readable too when the write end is gone
	var readerSet, readerUnset Status
	if !s.queue.IsEmpty() || s.writeClosed {
		readerSet = StatusReadable
	} else {
		readerUnset = StatusReadable
	}
	s.reader.AdjustStatus(readerSet, readerUnset)

	// a closed read end wakes blocked writers so they can observe EPIPE
	var writerSet, writerUnset Status
	if (s.space() > 0 && !s.writeClosed) || s.readClosed {
		writerSet = StatusWritable
	} else {
		writerUnset = StatusWritable
	}
	s.writer.AdjustStatus(writerSet, writerUnset)
}

// A Pipe is one end of a unidirectional byte stream. Both ends share a
// single bounded buffer; the end's mode decides which operations it
// supports.
type Pipe struct {
	shared  *pipeShared
	canRead bool
}

// NewPipePair creates a connected pipe and returns the read and write ends,
// each holding one owned reference.
func NewPipePair(flags FileStatusFlags) (reader, writer *PosixFile) {
	shared := &pipeShared{
		queue: bytequeue.New(pipeChunkSize),
	}
	reader = NewPosixFile(&Pipe{shared: shared, canRead: true}, 0)
	writer = NewPosixFile(&Pipe{shared: shared, canRead: false}, StatusWritable)
	reader.SetStatusFlags(flags)
	writer.SetStatusFlags(flags)
	shared.reader = reader
	shared.writer = writer
	return reader, writer
}

func (p *Pipe) Read(dst []byte) (int, syscall.Errno) {
	if !p.canRead {
		return 0, syscall.EBADF
	}
	s := p.shared

	if s.queue.IsEmpty() {
		if s.writeClosed || s.readClosed {
			// end-of-stream
			return 0, 0
		}
		return 0, syscall.EWOULDBLOCK
	}

	n := s.queue.Pop(dst)
	s.updateStatus()
	return n, 0
}

func (p *Pipe) Write(src []byte) (int, syscall.Errno) {
	if p.canRead {
		return 0, syscall.EBADF
	}
	s := p.shared

	if s.readClosed {
		return 0, syscall.EPIPE
	}
	space := s.space()
	if space == 0 {
		return 0, syscall.EWOULDBLOCK
	}
	if len(src) > space {
		src = src[:space]
	}
	s.queue.Push(src)
	s.updateStatus()
	return len(src), 0
}

func (p *Pipe) Close() {
	s := p.shared
	if p.canRead {
		s.readClosed = true
	} else {
		s.writeClosed = true
	}
	s.updateStatus()
}
