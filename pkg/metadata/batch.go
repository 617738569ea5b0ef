package metadata

import (
	"context"
	"os"
	"sync"
)

// defaultWorkers bounds the fan-out for a metadata batch read: enough to
// saturate typical disk/network I/O without opening hundreds of file
// descriptors at once on a large tree.
const defaultWorkers = 8

// BatchResult pairs a file's metadata with the error reading it, so a
// caller can keep processing the rest of the batch when one file fails.
type BatchResult struct {
	Path string
	Meta *ImageMetadata
	Err  error
}

// ReadBatch reads metadata for every path concurrently, bounded to
// defaultWorkers in flight, and returns results in the same order as
// paths regardless of completion order. Cancelling ctx stops launching
// new reads; in-flight reads still complete and are reported.
func ReadBatch(ctx context.Context, paths []string, cache Cache) []BatchResult {
	results := make([]BatchResult, len(paths))
	sem := make(chan struct{}, defaultWorkers)
	var wg sync.WaitGroup

	for i, p := range paths {
		if ctx.Err() != nil {
			results[i] = BatchResult{Path: p, Err: ctx.Err()}
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, path string) {
			defer wg.Done()
			defer func() { <-sem }()
			info, err := os.Stat(path)
			if err != nil {
				results[i] = BatchResult{Path: path, Err: err}
				return
			}
			m, err := ReadMetadataCached(path, info, cache)
			results[i] = BatchResult{Path: path, Meta: m, Err: err}
		}(i, p)
	}
	wg.Wait()
	return results
}
