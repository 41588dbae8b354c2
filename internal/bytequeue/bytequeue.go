// Package bytequeue implements the chunked FIFO byte storage used by
// descriptor implementations to hold unread or unsent bytes.
package bytequeue

// A ByteQueue stores bytes in fixed-sized chunks. Splitting the storage in
// chunks bounds the cost of a single allocation and lets fully-drained chunks
// be released independently of partially-filled ones.
//
// Push never blocks or truncates; backpressure is the caller's responsibility
// via descriptor status. Pop returns at most min(requested, available) bytes
// in FIFO order.
type ByteQueue struct {
	chunkSize int
	chunks    []*chunk
	length    int

	// spare keeps at most one drained chunk for reuse so that a
	// steady-state reader/writer pair does not allocate per chunk.
	spare *chunk
}

type chunk struct {
	data       []byte
	start, end int
}

func New(chunkSize int) *ByteQueue {
	if chunkSize < 1 {
		panic("bytequeue: chunk size must be at least 1")
	}
	return &ByteQueue{chunkSize: chunkSize}
}

func (q *ByteQueue) Len() int {
	return q.length
}

func (q *ByteQueue) IsEmpty() bool {
	return q.length == 0
}

func (q *ByteQueue) allocChunk() *chunk {
	if c := q.spare; c != nil {
		q.spare = nil
		c.start, c.end = 0, 0
		return c
	}
	return &chunk{data: make([]byte, q.chunkSize)}
}

func (q *ByteQueue) releaseChunk(c *chunk) {
	q.spare = c
}

// Push appends src to the queue, copying it into as many chunks as needed.
func (q *ByteQueue) Push(src []byte) {
	q.length += len(src)

	if n := len(q.chunks); n > 0 {
		c := q.chunks[n-1]
		copied := copy(c.data[c.end:], src)
		c.end += copied
		src = src[copied:]
	}
	for len(src) > 0 {
		c := q.allocChunk()
		c.end = copy(c.data, src)
		src = src[c.end:]
		q.chunks = append(q.chunks, c)
	}
}

// Pop removes up to len(dst) bytes from the front of the queue and copies them
// into dst, returning how many bytes were copied. Fully-consumed chunks are
// discarded as they drain.
func (q *ByteQueue) Pop(dst []byte) int {
	popped := 0
	for len(dst) > 0 && len(q.chunks) > 0 {
		c := q.chunks[0]
		n := copy(dst, c.data[c.start:c.end])
		c.start += n
		dst = dst[n:]
		popped += n
		if c.start == c.end {
			q.chunks[0] = nil
			q.chunks = q.chunks[1:]
			q.releaseChunk(c)
		}
	}
	q.length -= popped
	return popped
}
