package metadata

import "os"

// Cache memoizes ReadMetadata results keyed on a file's path, size and
// modification time, so repeated runs over the same tree skip re-parsing
// headers for files that have not changed since the last scan.
type Cache interface {
	Get(path string, info os.FileInfo) (*ImageMetadata, bool)
	Put(path string, info os.FileInfo, m *ImageMetadata)
	Close() error
}

// ReadMetadataCached wraps ReadMetadata with an optional Cache. A nil
// cache falls through to a plain uncached read.
func ReadMetadataCached(path string, info os.FileInfo, cache Cache) (*ImageMetadata, error) {
	if cache != nil {
		if m, ok := cache.Get(path, info); ok {
			return m, nil
		}
	}
	m, err := ReadMetadata(path)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		cache.Put(path, info, m)
	}
	return m, nil
}

func cacheStamp(info os.FileInfo) (size int64, mtimeTicks int64) {
	return info.Size(), info.ModTime().UnixNano()
}
