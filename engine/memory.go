package engine

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"

	wasiadapter "github.com/wippyai/wasi-adapter"
)

// WazeroMemory wraps wazero memory to implement wasiadapter.Memory.
// Read returns a view that aliases guest memory; it stays valid until the
// guest grows its memory.
type WazeroMemory struct {
	mem api.Memory
}

// NewWazeroMemory wraps mem. A nil mem yields a memory where every access
// is out of bounds.
func NewWazeroMemory(mem api.Memory) *WazeroMemory {
	return &WazeroMemory{mem: mem}
}

func (m *WazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	if m.mem == nil {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", offset, length)
	}
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", offset, length)
	}
	return data, nil
}

func (m *WazeroMemory) Write(offset uint32, data []byte) error {
	if m.mem == nil || !m.mem.Write(offset, data) {
		return fmt.Errorf("write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

func (m *WazeroMemory) ReadU8(offset uint32) (uint8, error) {
	data, err := m.Read(offset, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

func (m *WazeroMemory) ReadU16(offset uint32) (uint16, error) {
	data, err := m.Read(offset, 2)
	if err != nil {
		return 0, err
	}
	return uint16(data[0]) | uint16(data[1])<<8, nil
}

func (m *WazeroMemory) ReadU32(offset uint32) (uint32, error) {
	if m.mem != nil {
		if val, ok := m.mem.ReadUint32Le(offset); ok {
			return val, nil
		}
	}
	return 0, fmt.Errorf("read out of bounds: offset=%d, length=4", offset)
}

func (m *WazeroMemory) ReadU64(offset uint32) (uint64, error) {
	if m.mem != nil {
		if val, ok := m.mem.ReadUint64Le(offset); ok {
			return val, nil
		}
	}
	return 0, fmt.Errorf("read out of bounds: offset=%d, length=8", offset)
}

func (m *WazeroMemory) WriteU8(offset uint32, value uint8) error {
	return m.Write(offset, []byte{value})
}

func (m *WazeroMemory) WriteU16(offset uint32, value uint16) error {
	return m.Write(offset, []byte{byte(value), byte(value >> 8)})
}

func (m *WazeroMemory) WriteU32(offset uint32, value uint32) error {
	if m.mem == nil || !m.mem.WriteUint32Le(offset, value) {
		return fmt.Errorf("write out of bounds: offset=%d, length=4", offset)
	}
	return nil
}

func (m *WazeroMemory) WriteU64(offset uint32, value uint64) error {
	if m.mem == nil || !m.mem.WriteUint64Le(offset, value) {
		return fmt.Errorf("write out of bounds: offset=%d, length=8", offset)
	}
	return nil
}

func (m *WazeroMemory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

// Compile-time check that WazeroMemory implements wasiadapter.Memory and MemorySizer
var _ wasiadapter.Memory = (*WazeroMemory)(nil)
var _ wasiadapter.MemorySizer = (*WazeroMemory)(nil)
