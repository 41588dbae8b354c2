//go:build linux && !amd64 && !arm64 && !386

package interpose

// No classic-syscall aliases are interposed on the remaining architectures.
var archSymbols []Symbol
