// Package mem implements the address-space manager: the simulator's view of
// a managed thread's virtual memory.
//
// Remote addresses are meaningful only inside the managed process. The
// manager keeps a sorted arena of mapped ranges with local backing and hands
// out scoped access to them, so the simulator can read and write the managed
// process's memory without unchecked pointer arithmetic. It also fully
// emulates the memory-shaping syscalls (brk, mmap, munmap, mremap,
// mprotect), keeping its view of ranges and protections exactly what the
// managed thread observes.
package mem

import (
	"errors"
	"log/slog"
	"syscall"

	"github.com/umbra-sim/umbra/internal/abi"
)

// Pointer-resolution failures are distinguished so the syscall handler can
// choose EFAULT versus EACCES signaling.
var (
	// ErrInvalidAddress means part of the requested range is unmapped.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrPermission means the range is mapped but its protection does not
	// allow the requested access.
	ErrPermission = errors.New("permission denied")
)

const (
	pageSize = 4096

	// heapLimit bounds how far the heap break may grow past the heap base.
	heapLimit = 256 << 20

	// mmapBase is where address selection starts for mappings without a
	// placement hint.
	mmapBase uintptr = 0x7f0000000000
)

func pageAlignDown(v uintptr) uintptr {
	return v &^ (pageSize - 1)
}

func pageAlignUp(v uintptr) uintptr {
	return (v + pageSize - 1) &^ (pageSize - 1)
}

// A mapping is one contiguous remote range backed by local memory.
// Len(data) always equals end-start.
type mapping struct {
	start, end uintptr
	prot       int
	heap       bool
	data       []byte
}

// view is one outstanding scoped access that must be written back to its
// remote range when the manager flushes.
type view struct {
	addr uintptr
	data []byte
}

// A MemoryManager tracks one managed thread's address space. Pointers handed
// out by the Ptr accessors are valid only until the next mutating call or
// Flush on the same manager; retaining them past that is a programming
// fault the manager cannot detect.
type MemoryManager struct {
	// mappings is sorted by start and non-overlapping
	mappings []*mapping

	heapStart uintptr
	brk       uintptr

	// writeback views from straddling writable/mutable accesses, applied
	// in order on Flush
	pending []view
}

func NewMemoryManager(heapStart uintptr) *MemoryManager {
	if heapStart != pageAlignDown(heapStart) {
		panic("heap base must be page aligned")
	}
	return &MemoryManager{
		heapStart: heapStart,
		brk:       heapStart,
	}
}

// findIndex returns the index of the first mapping whose end is above addr.
func (mm *MemoryManager) findIndex(addr uintptr) int {
	lo, hi := 0, len(mm.mappings)
	for lo < hi {
		mid := (lo + hi) / 2
		if mm.mappings[mid].end <= addr {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// resolve collects the mappings covering [addr, addr+n), in order, checking
// that every byte is mapped with the required protection bits.
func (mm *MemoryManager) resolve(addr, n uintptr, prot int) ([]*mapping, error) {
	if n == 0 {
		return nil, nil
	}
	if addr+n < addr {
		return nil, ErrInvalidAddress
	}

	var out []*mapping
	next := addr
	for i := mm.findIndex(addr); next < addr+n; i++ {
		if i >= len(mm.mappings) || mm.mappings[i].start > next {
			return nil, ErrInvalidAddress
		}
		m := mm.mappings[i]
		if m.prot&prot != prot {
			return nil, ErrPermission
		}
		out = append(out, m)
		next = m.end
	}
	return out, nil
}

// ReadablePtr resolves [addr, addr+n) for reading. If the range lies in one
// mapping the returned slice aliases the backing directly; a range that
// straddles mappings is stitched into one contiguous copy.
func (mm *MemoryManager) ReadablePtr(addr abi.RemotePtr, n uintptr) ([]byte, error) {
	covering, err := mm.resolve(uintptr(addr), n, syscall.PROT_READ)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if len(covering) == 1 {
		m := covering[0]
		off := uintptr(addr) - m.start
		return m.data[off : off+n : off+n], nil
	}
	return mm.stitch(covering, uintptr(addr), n), nil
}

// WritablePtr resolves [addr, addr+n) for writing. The returned slice's
// contents are unspecified; every byte the caller intends to keep must be
// written. Straddling views reach the managed memory only on Flush.
func (mm *MemoryManager) WritablePtr(addr abi.RemotePtr, n uintptr) ([]byte, error) {
	covering, err := mm.resolve(uintptr(addr), n, syscall.PROT_WRITE)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if len(covering) == 1 {
		m := covering[0]
		off := uintptr(addr) - m.start
		return m.data[off : off+n : off+n], nil
	}
	scratch := make([]byte, n)
	mm.pending = append(mm.pending, view{addr: uintptr(addr), data: scratch})
	return scratch, nil
}

// MutablePtr resolves [addr, addr+n) for read-modify-write access: the
// returned slice holds the current contents, and mutations reach the managed
// memory directly or on Flush.
func (mm *MemoryManager) MutablePtr(addr abi.RemotePtr, n uintptr) ([]byte, error) {
	covering, err := mm.resolve(uintptr(addr), n, syscall.PROT_READ|syscall.PROT_WRITE)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if len(covering) == 1 {
		m := covering[0]
		off := uintptr(addr) - m.start
		return m.data[off : off+n : off+n], nil
	}
	scratch := mm.stitch(covering, uintptr(addr), n)
	mm.pending = append(mm.pending, view{addr: uintptr(addr), data: scratch})
	return scratch, nil
}

// stitch copies a straddling range out of its covering mappings into one
// contiguous scratch slice.
func (mm *MemoryManager) stitch(covering []*mapping, addr, n uintptr) []byte {
	out := make([]byte, n)
	pos := uintptr(0)
	for _, m := range covering {
		start := max(addr, m.start)
		end := min(addr+n, m.end)
		pos += uintptr(copy(out[pos:], m.data[start-m.start:end-m.start]))
	}
	return out
}

// Flush writes all outstanding straddling views back to the managed memory
// and invalidates every pointer previously handed out.
func (mm *MemoryManager) Flush() {
	for _, v := range mm.pending {
		// the mapping layout cannot have changed while views were
		// outstanding, so resolution cannot fail here
		covering, err := mm.resolve(v.addr, uintptr(len(v.data)), syscall.PROT_WRITE)
		if err != nil {
			panic("stale writable view")
		}
		for _, m := range covering {
			start := max(v.addr, m.start)
			end := min(v.addr+uintptr(len(v.data)), m.end)
			copy(m.data[start-m.start:end-m.start], v.data[start-v.addr:end-v.addr])
		}
	}
	mm.pending = mm.pending[:0]
}

// Discard drops outstanding straddling views without writing them back, for
// aborted operations whose views were never filled.
func (mm *MemoryManager) Discard() {
	mm.pending = mm.pending[:0]
}

// insert adds a mapping, keeping the arena sorted. The range must be free.
func (mm *MemoryManager) insert(m *mapping) {
	i := mm.findIndex(m.start)
	mm.mappings = append(mm.mappings, nil)
	copy(mm.mappings[i+1:], mm.mappings[i:])
	mm.mappings[i] = m
}

// isFree reports whether [start, end) overlaps no existing mapping.
func (mm *MemoryManager) isFree(start, end uintptr) bool {
	i := mm.findIndex(start)
	return i >= len(mm.mappings) || mm.mappings[i].start >= end
}

// HandleBrk fully emulates the brk syscall. A zero argument queries the
// current break. The break may not shrink below the heap base nor grow past
// the heap limit.
func (mm *MemoryManager) HandleBrk(newBrk abi.RemotePtr) (abi.RemotePtr, error) {
	if newBrk.IsNull() {
		return abi.RemotePtr(mm.brk), nil
	}
	target := uintptr(newBrk)
	if target < mm.heapStart {
		return 0, syscall.ENOMEM
	}
	if target-mm.heapStart > heapLimit {
		return 0, syscall.ENOMEM
	}

	oldEnd := pageAlignUp(mm.brk)
	newEnd := pageAlignUp(target)

	heap := mm.heapMapping()
	switch {
	case newEnd > oldEnd:
		if heap == nil {
			if !mm.isFree(mm.heapStart, newEnd) {
				return 0, syscall.ENOMEM
			}
			heap = &mapping{
				start: mm.heapStart,
				end:   newEnd,
				prot:  syscall.PROT_READ | syscall.PROT_WRITE,
				heap:  true,
				data:  make([]byte, newEnd-mm.heapStart),
			}
			mm.insert(heap)
		} else {
			if !mm.isFree(heap.end, newEnd) {
				return 0, syscall.ENOMEM
			}
			grown := make([]byte, newEnd-heap.start)
			copy(grown, heap.data)
			heap.data = grown
			heap.end = newEnd
		}
	case newEnd < oldEnd && heap != nil:
		if newEnd == mm.heapStart {
			mm.removeMapping(heap)
		} else {
			heap.data = heap.data[:newEnd-heap.start]
			heap.end = newEnd
		}
	}

	slog.Debug("brk", "brk", target, "heapPages", (newEnd-mm.heapStart)/pageSize)

	mm.brk = target
	return abi.RemotePtr(target), nil
}

func (mm *MemoryManager) heapMapping() *mapping {
	i := mm.findIndex(mm.heapStart)
	if i < len(mm.mappings) && mm.mappings[i].start == mm.heapStart && mm.mappings[i].heap {
		return mm.mappings[i]
	}
	return nil
}

func (mm *MemoryManager) removeMapping(m *mapping) {
	for i, got := range mm.mappings {
		if got == m {
			mm.mappings = append(mm.mappings[:i], mm.mappings[i+1:]...)
			return
		}
	}
	panic("removing unknown mapping")
}

// findFreeRange picks an unused range of the given length, starting the
// search at hint if one was supplied.
func (mm *MemoryManager) findFreeRange(hint, length uintptr) (uintptr, error) {
	start := mmapBase
	if hint != 0 {
		start = pageAlignDown(hint)
	}
	for {
		end := start + length
		if end < start {
			return 0, syscall.ENOMEM
		}
		i := mm.findIndex(start)
		if i >= len(mm.mappings) || mm.mappings[i].start >= end {
			return start, nil
		}
		start = mm.mappings[i].end
	}
}

// HandleMmap fully emulates the mmap syscall for private anonymous
// mappings. File-backed mappings are not part of the simulated address
// space.
func (mm *MemoryManager) HandleMmap(addr abi.RemotePtr, length uintptr, prot, flags int32, fd int32, offset int64) (abi.RemotePtr, error) {
	if length == 0 {
		return 0, syscall.EINVAL
	}
	if flags&syscall.MAP_PRIVATE == 0 {
		return 0, syscall.EINVAL
	}
	if flags&syscall.MAP_ANONYMOUS == 0 || fd != -1 {
		// no simulated backing objects to map
		return 0, syscall.ENODEV
	}
	if offset != 0 {
		return 0, syscall.EINVAL
	}
	length = pageAlignUp(length)

	var start uintptr
	if flags&syscall.MAP_FIXED != 0 {
		start = uintptr(addr)
		if start != pageAlignDown(start) {
			return 0, syscall.EINVAL
		}
		// MAP_FIXED replaces whatever was there
		if err := mm.unmapRange(start, length); err != nil {
			return 0, err
		}
	} else {
		var err error
		start, err = mm.findFreeRange(uintptr(addr), length)
		if err != nil {
			return 0, err
		}
	}

	m := &mapping{
		start: start,
		end:   start + length,
		prot:  int(prot),
		data:  make([]byte, length),
	}
	mm.insert(m)

	slog.Debug("mmap", "addr", start, "len", length,
		"prot", protFormatter.Format(int(prot)), "flags", mapFormatter.Format(int(flags)))

	return abi.RemotePtr(start), nil
}

// splitAt splits the mapping containing addr so that addr becomes a mapping
// boundary. Splitting at an existing boundary or in a hole is a no-op.
func (mm *MemoryManager) splitAt(addr uintptr) {
	i := mm.findIndex(addr)
	if i >= len(mm.mappings) {
		return
	}
	m := mm.mappings[i]
	if m.start >= addr || m.end <= addr {
		return
	}
	tail := &mapping{
		start: addr,
		end:   m.end,
		prot:  m.prot,
		heap:  m.heap,
		data:  m.data[addr-m.start:],
	}
	m.end = addr
	m.data = m.data[:addr-m.start]
	mm.insert(tail)
}

// unmapRange removes every mapping byte in [start, start+length), splitting
// partially covered mappings. Unmapped holes inside the range are fine.
func (mm *MemoryManager) unmapRange(start, length uintptr) error {
	end := start + length
	if end < start {
		return syscall.EINVAL
	}
	mm.splitAt(start)
	mm.splitAt(end)
	i := mm.findIndex(start)
	for i < len(mm.mappings) && mm.mappings[i].start < end {
		mm.mappings = append(mm.mappings[:i], mm.mappings[i+1:]...)
	}
	return nil
}

// HandleMunmap fully emulates the munmap syscall.
func (mm *MemoryManager) HandleMunmap(addr abi.RemotePtr, length uintptr) error {
	start := uintptr(addr)
	if start != pageAlignDown(start) || length == 0 {
		return syscall.EINVAL
	}
	return mm.unmapRange(start, pageAlignUp(length))
}

// HandleMprotect fully emulates the mprotect syscall. The whole range must
// be mapped; partially covered mappings are split at the range boundaries.
func (mm *MemoryManager) HandleMprotect(addr abi.RemotePtr, length uintptr, prot int32) error {
	start := uintptr(addr)
	if start != pageAlignDown(start) {
		return syscall.EINVAL
	}
	if length == 0 {
		return nil
	}
	length = pageAlignUp(length)

	// POSIX wants ENOMEM when part of the range is unmapped
	if _, err := mm.resolve(start, length, 0); err != nil {
		return syscall.ENOMEM
	}

	mm.splitAt(start)
	mm.splitAt(start + length)
	for i := mm.findIndex(start); i < len(mm.mappings) && mm.mappings[i].start < start+length; i++ {
		mm.mappings[i].prot = int(prot)
	}
	return nil
}

// HandleMremap fully emulates the mremap syscall for the supported cases:
// shrinking in place, growing in place when the space behind the mapping is
// free, and moving when MREMAP_MAYMOVE allows it.
func (mm *MemoryManager) HandleMremap(oldAddr abi.RemotePtr, oldSize, newSize uintptr, flags int32, newAddr abi.RemotePtr) (abi.RemotePtr, error) {
	const (
		mremapMaymove = 0x1
		mremapFixed   = 0x2
	)

	start := uintptr(oldAddr)
	if start != pageAlignDown(start) || newSize == 0 {
		return 0, syscall.EINVAL
	}
	oldSize = pageAlignUp(oldSize)
	newSize = pageAlignUp(newSize)

	i := mm.findIndex(start)
	if i >= len(mm.mappings) {
		return 0, syscall.EFAULT
	}
	m := mm.mappings[i]
	// the old range must be exactly one mapping here; resizing across
	// mapping boundaries is not supported
	if m.start != start || m.end != start+oldSize {
		return 0, syscall.EFAULT
	}

	switch {
	case newSize == oldSize:
		return oldAddr, nil

	case newSize < oldSize:
		m.end = start + newSize
		m.data = m.data[:newSize]
		return oldAddr, nil

	case mm.isFree(m.end, start+newSize):
		grown := make([]byte, newSize)
		copy(grown, m.data)
		m.data = grown
		m.end = start + newSize
		return oldAddr, nil

	case flags&mremapMaymove != 0:
		var target uintptr
		if flags&mremapFixed != 0 {
			target = uintptr(newAddr)
			if target != pageAlignDown(target) {
				return 0, syscall.EINVAL
			}
			if err := mm.unmapRange(target, newSize); err != nil {
				return 0, err
			}
		} else {
			var err error
			target, err = mm.findFreeRange(0, newSize)
			if err != nil {
				return 0, err
			}
		}
		moved := &mapping{
			start: target,
			end:   target + newSize,
			prot:  m.prot,
			data:  make([]byte, newSize),
		}
		copy(moved.data, m.data)
		mm.removeMapping(m)
		mm.insert(moved)
		return abi.RemotePtr(target), nil

	default:
		return 0, syscall.ENOMEM
	}
}
