// Package guest binds the codec to running WebAssembly guests. It adapts
// wazero's memory and exported functions to the membrane Memory and
// Allocator interfaces, locates the guest's canonical allocator exports,
// and drives full call conventions in both directions: host calling a
// guest export, and a Go handler serving a guest import.
//
// Allocation goes through the guest's own exported realloc so that
// pointers handed across the boundary are valid in the guest's heap.
// Guests that export a linear memory but no allocator can still be
// driven read-mostly through a host-managed bump allocator.
package guest
