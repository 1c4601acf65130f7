// Package catalog persists file descriptions and analysis rows for the
// library (the Catalog half of the catalog/search pairing),
// backed by a real transactional SQL store.
package catalog

import (
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// chunkSize is the read granularity for CRC32 computation.
const chunkSize = 400 * 1024

// FileDescription is one cataloged file: its location relative to a
// library root, plus a lazily computed content hash.
type FileDescription struct {
	ID           int64
	Directory    string // root-relative, forward-slash normalized
	FileName     string
	Extension    string
	LastModified int64 // unix seconds

	mu   sync.Mutex
	crc  string
	have bool
}

// Describe builds a FileDescription for absPath, relative to root.
// Path separators are normalized to forward slashes regardless of
// host OS.
func Describe(root, absPath string, modTime time.Time) (*FileDescription, error) {
	rel, err := filepath.Rel(root, absPath)
	if err != nil {
		return nil, fmt.Errorf("path %s is not under root %s: %w", absPath, root, err)
	}
	rel = toUnixPath(rel)

	dir := filepath.Dir(rel)
	if dir == "." {
		dir = ""
	}
	base := filepath.Base(rel)
	ext := strings.TrimPrefix(filepath.Ext(base), ".")

	return &FileDescription{
		Directory:    dir,
		FileName:     base,
		Extension:    ext,
		LastModified: modTime.Unix(),
	}, nil
}

func toUnixPath(p string) string {
	return strings.ReplaceAll(p, string(filepath.Separator), "/")
}

// FullPath reconstructs the absolute path of the described file given
// the library root it was cataloged under.
func (f *FileDescription) FullPath(root string) string {
	if f.Directory == "" {
		return filepath.Join(root, f.FileName)
	}
	return filepath.Join(root, filepath.FromSlash(f.Directory), f.FileName)
}

// CRC returns the memoized lowercase 8-hex-digit CRC32 of the file
// body, computing and caching it on first call (the CRC
// idempotence law).
func (f *FileDescription) CRC(root string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.have {
		return f.crc, nil
	}

	h, err := hashFile(f.FullPath(root))
	if err != nil {
		return "", err
	}
	f.crc = h
	f.have = true
	return h, nil
}

func hashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	table := crc32.MakeTable(crc32.IEEE)
	var sum uint32
	buf := make([]byte, chunkSize)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			sum = crc32.Update(sum, table, buf[:n])
		}
		if err != nil {
			break
		}
	}
	return fmt.Sprintf("%08x", sum), nil
}
