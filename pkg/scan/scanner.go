package scan

import (
	"context"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"

	"github.com/nightflat/flatmaster/pkg/metadata"
	"github.com/nightflat/flatmaster/pkg/progress"
)

// skipDirNames are directory basenames (case-insensitive) the scanner
// never descends into: they hold previously produced masters or
// calibrated output, not raw frames to scan. Any directory whose leaf
// name starts with "." is skipped as well, regardless of this list.
var skipDirNames = map[string]bool{
	"_darkmasters":     true,
	"_calibratedflats": true,
	"masters":          true,
	"_processed":       true,
}

// masterFlatRE matches an output filename this tool (or the WBPP-style
// process it historically fed) would itself have produced, so a rerun
// over a flat output directory never treats a prior master flat as raw
// input. It only matches the flat-scanning side: dark cataloging relies
// on frame-type classification instead, since a stray master flat in a
// dark root is already excluded by not being a dark-class or bias-class
// type.
var masterFlatRE = regexp.MustCompile(`(?i)^masterflat_`)

var imageExtensions = map[string]bool{
	".fits": true, ".fit": true, ".fts": true, ".xisf": true,
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || skipDirNames[strings.ToLower(name)]
}

// ScanFlats walks roots looking for flat frames, grouping each directory's
// frames by (filter, exposure key, binning). Reserved directories and
// files matching masterFlatRE are excluded.
func ScanFlats(ctx context.Context, roots []string, cache metadata.Cache, sink progress.Sink) ([]*DirectoryJob, Tally, error) {
	var jobs []*DirectoryJob
	var tally Tally

	dirFiles := make(map[string][]string)
	var dirOrder []string

	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				if path != root && skipDir(d.Name()) {
					tally.DirsPruned++
					return filepath.SkipDir
				}
				tally.DirsVisited++
				return nil
			}
			if !imageExtensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			if masterFlatRE.MatchString(filepath.Base(path)) {
				return nil
			}
			dir := filepath.Dir(path)
			if _, seen := dirFiles[dir]; !seen {
				dirOrder = append(dirOrder, dir)
			}
			dirFiles[dir] = append(dirFiles[dir], path)
			return nil
		})
		if err != nil {
			return nil, tally, err
		}
	}

	for _, dir := range dirOrder {
		results := metadata.ReadBatch(ctx, dirFiles[dir], cache)
		var metas []*metadata.ImageMetadata
		for _, r := range results {
			if r.Err != nil || r.Meta == nil {
				continue
			}
			if r.Meta.FrameType != metadata.FrameFlat {
				continue
			}
			metas = append(metas, r.Meta)
		}
		job := groupFlats(dir, metas, &tally)
		jobs = append(jobs, job)
		progress.Emit(sink, progress.Event{
			Stage:   progress.StageScan,
			Message: dir,
			Done:    len(jobs),
			Total:   len(dirOrder),
		})
	}

	return jobs, tally, nil
}

func groupFlats(dir string, metas []*metadata.ImageMetadata, tally *Tally) *DirectoryJob {
	type key struct {
		filter, exposureKey, binning string
	}
	grouped := make(map[key]*ExposureGroup)
	var order []key

	for _, m := range metas {
		k := key{filter: m.Filter, exposureKey: m.ExposureKey, binning: m.Binning}
		g, ok := grouped[k]
		if !ok {
			g = &ExposureGroup{
				Dir:         dir,
				Filter:      m.Filter,
				Exposure:    m.Exposure,
				HasExposure: m.HasExposure,
				ExposureKey: m.ExposureKey,
				Binning:     m.Binning,
			}
			grouped[k] = g
			order = append(order, k)
		}
		g.Frames = append(g.Frames, m)
	}

	job := &DirectoryJob{Dir: dir}
	for _, k := range order {
		g := grouped[k]
		sort.Slice(g.Frames, func(i, j int) bool {
			return strings.ToLower(g.Frames[i].Path) < strings.ToLower(g.Frames[j].Path)
		})
		if len(g.Frames) < minGroupSize {
			job.SkippedTiny = append(job.SkippedTiny, g)
			tally.GroupsSkipped++
			continue
		}
		job.Groups = append(job.Groups, g)
	}
	return job
}

// ScanDarks walks roots looking for dark and bias frames and returns a
// catalog indexed for fast matching. A frame is accepted as a dark
// candidate only if its type is one of {Dark, DarkFlat, MasterDark,
// MasterDarkFlat} and it reports an exposure, or its type is {Bias,
// MasterBias} (bias frames with no recorded exposure adopt exposure 0).
// Any cataloged frame lacking a temperature has one imputed from the
// median temperature of darks sharing its binning, among those that do
// report one.
func ScanDarks(ctx context.Context, roots []string, cache metadata.Cache, sink progress.Sink) (*DarkCatalog, error) {
	var paths []string
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && skipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !imageExtensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	results := metadata.ReadBatch(ctx, paths, cache)
	var frames []*DarkFrame
	for _, r := range results {
		if r.Err != nil || r.Meta == nil {
			continue
		}
		switch {
		case darkClassTypes[r.Meta.FrameType] && r.Meta.HasExposure:
			frames = append(frames, &DarkFrame{Meta: r.Meta})
		case biasClassTypes[r.Meta.FrameType]:
			if !r.Meta.HasExposure {
				r.Meta.Exposure = 0
				r.Meta.HasExposure = true
				r.Meta.ExposureKey = metadata.ExposureKey(0, true)
			}
			frames = append(frames, &DarkFrame{Meta: r.Meta})
		}
	}

	backfillDarkTemperatures(frames)

	progress.Emit(sink, progress.Event{
		Stage:   progress.StageScan,
		Message: "dark catalog built",
		Done:    len(frames),
		Total:   len(frames),
	})
	return NewDarkCatalog(frames), nil
}

// backfillDarkTemperatures fills in the temperature of any cataloged dark
// missing one with the median temperature of darks sharing the same
// binning that do report a temperature. A frame's own reading is always
// preferred; this is only a stand-in for sensors or software that omit
// the temperature keyword entirely.
func backfillDarkTemperatures(frames []*DarkFrame) {
	byBinning := make(map[string][]float64)
	for _, f := range frames {
		if f.Meta.HasTemp {
			byBinning[f.Meta.Binning] = append(byBinning[f.Meta.Binning], f.Meta.Temperature)
		}
	}
	medians := make(map[string]float64, len(byBinning))
	for binning, temps := range byBinning {
		if m, err := stats.Median(temps); err == nil {
			medians[binning] = m
		}
	}
	for _, f := range frames {
		if f.Meta.HasTemp {
			continue
		}
		if m, ok := medians[f.Meta.Binning]; ok {
			f.Meta.Temperature = m
			f.Meta.HasTemp = true
		}
	}
}
