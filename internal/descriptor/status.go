package descriptor

import (
	"github.com/umbra-sim/umbra/internal/simlog"
)

// Status is the readiness bitset of a file. Listeners are notified whenever
// one of the bits they monitor transitions.
type Status uint32

const (
	// StatusActive is set while the file is open and usable.
	StatusActive Status = 1 << iota
	// StatusReadable means a read will make progress: data is buffered, or
	// end-of-stream is observable.
	StatusReadable
	// StatusWritable means a write will make progress.
	StatusWritable
	// StatusClosed is set once the file has been closed. Closed files with
	// buffered data remain readable until the data is drained.
	StatusClosed
)

func (s Status) Has(mask Status) bool {
	return s&mask == mask
}

func (s Status) HasAny(mask Status) bool {
	return s&mask != 0
}

var statusFormatter = &simlog.BitflagFormatter{
	Flags: []simlog.BitflagValue{
		{Value: int(StatusActive), Name: "ACTIVE"},
		{Value: int(StatusReadable), Name: "READABLE"},
		{Value: int(StatusWritable), Name: "WRITABLE"},
		{Value: int(StatusClosed), Name: "CLOSED"},
	},
}

func (s Status) String() string {
	if s == 0 {
		return "NONE"
	}
	return statusFormatter.Format(int(s))
}
