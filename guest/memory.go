package guest

import (
	"github.com/tetratelabs/wazero/api"

	membrane "github.com/membrane-wasm/membrane"
	"github.com/membrane-wasm/membrane/errors"
)

// wazeroMemory adapts wazero's boolean-returning memory accessors to the
// error-returning Memory interface.
type wazeroMemory struct {
	mem api.Memory
}

// Wrap exposes a wazero linear memory as a membrane Memory.
func Wrap(mem api.Memory) membrane.Memory {
	return &wazeroMemory{mem: mem}
}

func (w *wazeroMemory) oob(offset, length uint32) error {
	return errors.New(errors.PhaseCall, errors.KindOutOfBounds).
		Detail("guest memory access at %d..%d outside %d bytes", offset, uint64(offset)+uint64(length), w.mem.Size()).
		Build()
}

func (w *wazeroMemory) Read(offset, length uint32) ([]byte, error) {
	data, ok := w.mem.Read(offset, length)
	if !ok {
		return nil, w.oob(offset, length)
	}
	return data, nil
}

func (w *wazeroMemory) Write(offset uint32, data []byte) error {
	if !w.mem.Write(offset, data) {
		return w.oob(offset, uint32(len(data)))
	}
	return nil
}

func (w *wazeroMemory) ReadU8(offset uint32) (uint8, error) {
	v, ok := w.mem.ReadByte(offset)
	if !ok {
		return 0, w.oob(offset, 1)
	}
	return v, nil
}

func (w *wazeroMemory) ReadU16(offset uint32) (uint16, error) {
	v, ok := w.mem.ReadUint16Le(offset)
	if !ok {
		return 0, w.oob(offset, 2)
	}
	return v, nil
}

func (w *wazeroMemory) ReadU32(offset uint32) (uint32, error) {
	v, ok := w.mem.ReadUint32Le(offset)
	if !ok {
		return 0, w.oob(offset, 4)
	}
	return v, nil
}

func (w *wazeroMemory) ReadU64(offset uint32) (uint64, error) {
	v, ok := w.mem.ReadUint64Le(offset)
	if !ok {
		return 0, w.oob(offset, 8)
	}
	return v, nil
}

func (w *wazeroMemory) WriteU8(offset uint32, value uint8) error {
	if !w.mem.WriteByte(offset, value) {
		return w.oob(offset, 1)
	}
	return nil
}

func (w *wazeroMemory) WriteU16(offset uint32, value uint16) error {
	if !w.mem.WriteUint16Le(offset, value) {
		return w.oob(offset, 2)
	}
	return nil
}

func (w *wazeroMemory) WriteU32(offset uint32, value uint32) error {
	if !w.mem.WriteUint32Le(offset, value) {
		return w.oob(offset, 4)
	}
	return nil
}

func (w *wazeroMemory) WriteU64(offset uint32, value uint64) error {
	if !w.mem.WriteUint64Le(offset, value) {
		return w.oob(offset, 8)
	}
	return nil
}

func (w *wazeroMemory) Size() uint32 {
	return w.mem.Size()
}
