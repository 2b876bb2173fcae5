package resources

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// Mapped is a read-only memory map of a file. Zero-length files are not
// mapped, since mmap rejects empty regions.
type Mapped struct {
	file *os.File
	data mmap.MMap
}

func readMmap(file *os.File) (mmap.MMap, error) {
	stat, statErr := file.Stat()
	if statErr != nil {
		return nil, statErr
	}
	if stat.Size() == 0 {
		return nil, nil
	}
	return mmap.Map(file, mmap.RDONLY, 0)
}

// MapFile opens path and maps it into memory read-only.
func MapFile(path string) (*Mapped, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	data, mmapErr := readMmap(file)
	if mmapErr != nil {
		file.Close()
		return nil, fmt.Errorf("error trying to mmap %s: %w", path, mmapErr)
	}
	return &Mapped{file: file, data: data}, nil
}

// Bytes returns the mapped contents. The slice is only valid until Close.
func (m *Mapped) Bytes() []byte {
	return m.data
}

func (m *Mapped) Len() int {
	return len(m.data)
}

func (m *Mapped) Close() error {
	var unmapErr error
	if m.data != nil {
		unmapErr = m.data.Unmap()
	}
	closeErr := m.file.Close()
	if unmapErr != nil {
		return unmapErr
	}
	return closeErr
}
