package page

import "fmt"

// MemFile is an in-memory File used by tests, implementing the full File
// interface (ReadAt/WriteAt/Truncate/Size).
type MemFile struct {
	data []byte
}

// NewMemFile creates an empty in-memory file.
func NewMemFile() *MemFile {
	return &MemFile{}
}

func (m *MemFile) ReadAt(b []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(b)) > int64(len(m.data)) {
		return 0, fmt.Errorf("page: memfile read out of range at %d", off)
	}
	copy(b, m.data[off:off+int64(len(b))])
	return len(b), nil
}

func (m *MemFile) WriteAt(b []byte, off int64) (int, error) {
	need := off + int64(len(b))
	if need > int64(len(m.data)) {
		grown := make([]byte, need)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[off:], b)
	return len(b), nil
}

func (m *MemFile) Truncate(size int64) error {
	if size < int64(len(m.data)) {
		m.data = m.data[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, m.data)
	m.data = grown
	return nil
}

func (m *MemFile) Size() (int64, error) { return int64(len(m.data)), nil }
func (m *MemFile) Sync() error          { return nil }
func (m *MemFile) Close() error         { return nil }
