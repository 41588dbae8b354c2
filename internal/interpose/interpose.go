// Package interpose implements the in-process interposition shim: the table
// that rewrites every intercepted libc entry point into a raw syscall
// invocation, and the single trap those invocations funnel through.
//
// The table decouples the interposed symbol set from the handler: a symbol
// whose underlying syscall differs from its own name ("64"-suffixed
// variants, double-underscore aliases) carries the number it really
// dispatches as, so the handler only ever sees canonical syscall numbers.
package interpose

import (
	"syscall"

	"github.com/umbra-sim/umbra/internal/abi"
)

// A Symbol is one interposed libc entry point and the raw syscall number it
// dispatches as.
type Symbol struct {
	Name  string
	Sysno int64
}

// HandlerFunc receives every trapped syscall. It must return a terminal
// result; blocking and re-dispatch happen above the shim, in the scheduler
// that owns the syscall handler.
type HandlerFunc func(args *abi.SyscallArgs) (uintptr, syscall.Errno)

// A Shim funnels interposed entry points into one handler.
type Shim struct {
	handler HandlerFunc
	table   map[string]int64
}

func New(handler HandlerFunc) *Shim {
	s := &Shim{
		handler: handler,
		table:   make(map[string]int64),
	}
	for _, sym := range interposedSymbols {
		s.table[sym.Name] = sym.Sysno
	}
	return s
}

// Lookup returns the syscall number an interposed symbol dispatches as.
func (s *Shim) Lookup(name string) (int64, bool) {
	nr, ok := s.table[name]
	return nr, ok
}

// Symbols returns the interposed entry points, for binding into the managed
// process.
func (s *Shim) Symbols() []Symbol {
	out := make([]Symbol, 0, len(s.table))
	for name, nr := range s.table {
		out = append(out, Symbol{Name: name, Sysno: nr})
	}
	return out
}

// Call invokes an interposed entry point by symbol name with up to six
// register-width arguments, returning a boxed errno as its error. Unknown
// symbols fail with ENOSYS, as does a shim with no handler bound.
func (s *Shim) Call(name string, args ...uintptr) (uintptr, error) {
	nr, ok := s.table[name]
	if !ok {
		return ^uintptr(0), abi.ErrnoErr(uintptr(syscall.ENOSYS))
	}
	value, errno := s.Trap(nr, args...)
	return value, abi.ErrnoErr(uintptr(errno))
}

// Trap dispatches a raw syscall number directly, the path taken when the
// managed process issues a syscall instruction rather than a libc call.
func (s *Shim) Trap(nr int64, args ...uintptr) (uintptr, syscall.Errno) {
	if s.handler == nil {
		return ^uintptr(0), syscall.ENOSYS
	}
	sysArgs := abi.SyscallArgs{Number: nr}
	copy(sysArgs.Args[:], args)
	return s.handler(&sysArgs)
}
