// Package heap emulates a WASM linear memory with the canonical
// realloc/free allocator the codec expects.
//
// Linear implements membrane.Memory, membrane.MemorySizer, and
// membrane.Allocator over a growable byte region, following the
// canonical_abi_realloc contract: zero-size requests return the alignment
// value as a non-dereferenceable sentinel without allocating, zero-size
// frees never reach the free list, and exhausting the configured memory
// ceiling panics, since out-of-memory is unrecoverable at this layer.
//
// The package exists so the codec can be exercised and tested without a
// live WASM instance; the guest package provides the same interfaces over
// real wazero memory.
package heap
