package preview1

// Arena is a fixed-capacity bump allocator. Allocations are never freed;
// the storage lives as long as the arena.
type Arena struct {
	data     []byte
	position uint32
}

func NewArena(size uint32) *Arena {
	return &Arena{data: make([]byte, size)}
}

// Alloc returns size bytes starting at an offset aligned to align, which
// must be a power of two. Running out of space halts the guest.
func (a *Arena) Alloc(align, size uint32) []byte {
	start := alignTo(uint64(a.position), uint64(align))
	end := start + uint64(size)
	if end > uint64(len(a.data)) {
		panic(fatal("out of memory: arena of %d bytes cannot fit %d more", len(a.data), size))
	}
	a.position = uint32(end)
	return a.data[start:end:end]
}

func (a *Arena) Cap() uint32  { return uint32(len(a.data)) }
func (a *Arena) Used() uint32 { return a.position }

func alignTo(n, align uint64) uint64 {
	if align == 0 {
		align = 1
	}
	return (n + align - 1) &^ (align - 1)
}
