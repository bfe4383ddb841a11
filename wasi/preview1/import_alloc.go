package preview1

type allocMode uint8

const (
	allocIdle allocMode = iota
	allocBuffer
	allocArena
)

// ImportAlloc decides where capability results are materialized. In
// buffer mode a single allocation is carved from a caller-provided buffer,
// usually a view of guest memory; in arena mode every allocation bumps the
// arena. Outside either mode allocating is an invariant violation.
type ImportAlloc struct {
	mode   allocMode
	used   bool
	buffer []byte
	arena  *Arena
}

// WithBuffer runs fn with buf as the destination of at most one import
// allocation.
func WithBuffer[T any](ia *ImportAlloc, buf []byte, fn func() T) T {
	switch ia.mode {
	case allocArena:
		panic(fatal("arena mode"))
	case allocBuffer:
		panic(fatal("overwrote another buffer"))
	}
	ia.mode, ia.buffer, ia.used = allocBuffer, buf, false
	defer ia.reset()
	return fn()
}

// WithArena runs fn with arena satisfying any number of import
// allocations.
func WithArena[T any](ia *ImportAlloc, arena *Arena, fn func() T) T {
	switch ia.mode {
	case allocBuffer:
		panic(fatal("buffer mode"))
	case allocArena:
		panic(fatal("overwrote another arena"))
	}
	ia.mode, ia.arena = allocArena, arena
	defer ia.reset()
	return fn()
}

func (ia *ImportAlloc) reset() {
	ia.mode, ia.buffer, ia.arena, ia.used = allocIdle, nil, nil, false
}

// Alloc is the realloc hook capability bindings call to place a result.
// A buffer's start is taken as suitably aligned for any request.
func (ia *ImportAlloc) Alloc(align, size uint32) []byte {
	switch ia.mode {
	case allocArena:
		return ia.arena.Alloc(align, size)
	case allocBuffer:
		if ia.used {
			break
		}
		if uint64(size) > uint64(len(ia.buffer)) {
			panic(fatal("out of memory: %d bytes requested from a %d byte buffer", size, len(ia.buffer)))
		}
		dst := ia.buffer[:size:size]
		ia.buffer, ia.used = nil, true
		return dst
	}
	panic(fatal("buffer not provided, or already used"))
}

// importBytes copies a capability result into memory obtained from the
// import allocator.
func importBytes(ia *ImportAlloc, data []byte) []byte {
	dst := ia.Alloc(1, uint32(len(data)))
	copy(dst, data)
	return dst
}

func importString(ia *ImportAlloc, s string) []byte {
	dst := ia.Alloc(1, uint32(len(s)))
	copy(dst, s)
	return dst
}
