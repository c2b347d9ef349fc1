package corpus

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// Load maps path read-only and parses it with ids capped at DefaultMaxID.
// If mmap is unavailable it falls back to reading the file into memory.
func Load(path string) (*Corpus, error) {
	return LoadLimit(path, DefaultMaxID)
}

// LoadLimit is Load with an explicit id cap.
func LoadLimit(path string, maxID int32) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size64 := stat.Size()
	if size64 > int64(int(^uint(0)>>1)) {
		return nil, fmt.Errorf("corpus: %s too large to map", path)
	}
	size := int(size64)
	if size == 0 {
		return &Corpus{}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		c, parseErr := ParseLimit(data, maxID)
		_ = unix.Munmap(data)
		if parseErr != nil {
			return nil, fmt.Errorf("%s: %w", path, parseErr)
		}
		return c, nil
	}

	data, err = io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	c, err := ParseLimit(data, maxID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
