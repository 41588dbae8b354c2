//go:build !linux

package interpose

// Interposition is a linux mechanism; elsewhere the shim carries an empty
// table and every Call fails with ENOSYS.
var interposedSymbols []Symbol
