package submission

import (
	"encoding/binary"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Checksum digests the submission folder snapshot: the sorted relative
// paths of every regular file with its size and mtime. Content is not
// hashed; the importer rewrites files wholesale, so size+mtime is
// enough to notice a re-upload without reading megabytes per student.
func (a *Accessor) Checksum(studentID string) (uint64, error) {
	dir := a.dir(studentID)

	type fileInfo struct {
		rel   string
		size  int64
		mtime int64
	}
	var files []fileInfo
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, fileInfo{
			rel:   filepath.ToSlash(rel),
			size:  info.Size(),
			mtime: info.ModTime().UnixNano(),
		})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to checksum submission folder: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].rel < files[j].rel })

	h := xxhash.New()
	var buf [8]byte
	for _, f := range files {
		_, _ = h.WriteString(f.rel)
		_, _ = h.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], uint64(f.size))
		_, _ = h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], uint64(f.mtime))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64(), nil
}
