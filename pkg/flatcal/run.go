package flatcal

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nightflat/flatmaster/pkg/darkmatch"
	"github.com/nightflat/flatmaster/pkg/fitsio"
	"github.com/nightflat/flatmaster/pkg/integrate"
	"github.com/nightflat/flatmaster/pkg/metadata"
	"github.com/nightflat/flatmaster/pkg/progress"
	"github.com/nightflat/flatmaster/pkg/scan"
)

// Run scans roots for flat-frame groups, matches each against darkRoots'
// catalog, integrates every group that has enough frames and a
// qualifying dark, and writes a master flat per group under
// cfg.OutputDir. A group with no qualifying dark is skipped with a
// warning unless cfg.RequireDarks is set, in which case it is reported
// as a failure instead. Progress events stream to sink (nil is valid
// and drops every event). Run blocks until every group is processed or
// ctx is cancelled.
func Run(ctx context.Context, roots, darkRoots []string, cfg ProcessingConfiguration, sink progress.Sink) (*Report, error) {
	cache, err := metadata.NewCache(cfg.CacheDBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening metadata cache: %v", ErrInternal, err)
	}
	defer cache.Close()

	jobs, tally, err := scan.ScanFlats(ctx, roots, cache, sink)
	if err != nil {
		return nil, translateScanError(err)
	}

	catalog, err := scan.ScanDarks(ctx, darkRoots, cache, sink)
	if err != nil {
		return nil, translateScanError(err)
	}

	report := &Report{
		DirsVisited:   tally.DirsVisited,
		DirsPruned:    tally.DirsPruned,
		SkippedGroups: tally.GroupsSkipped,
	}

	loader := makeLoader()
	darkCfg := cfg.darkMatchConfig()
	rejCfg := cfg.rejectionConfig()

	var totalGroups int
	for _, job := range jobs {
		totalGroups += len(job.Groups)
	}
	processed := 0

	for _, job := range jobs {
		for _, group := range job.Groups {
			if err := ctx.Err(); err != nil {
				return report, fmt.Errorf("%w: %v", ErrCancelled, err)
			}

			match := darkmatch.Match(group, catalog, darkCfg)
			progress.Emit(sink, progress.Event{
				Stage:    progress.StageDarkMatch,
				Message:  fmt.Sprintf("matched %s kind=%s", group.Dir, match.Kind),
				GroupKey: group.Filter + "/" + group.ExposureKey,
			})

			if match.Chosen == nil {
				if cfg.RequireDarks {
					report.Groups = append(report.Groups, GroupReport{
						Dir:      group.Dir,
						Filter:   group.Filter,
						Exposure: group.ExposureKey,
						Binning:  group.Binning,
						Err:      fmt.Errorf("%w: %s/%s", ErrNoMatchingDark, group.Filter, group.ExposureKey),
					})
					continue
				}
				report.SkippedNoDark++
				report.Groups = append(report.Groups, GroupReport{
					Dir:      group.Dir,
					Filter:   group.Filter,
					Exposure: group.ExposureKey,
					Binning:  group.Binning,
					Skipped:  true,
					Warning:  "no matching dark or bias found; group left uncalibrated and skipped",
				})
				continue
			}

			res, err := integrate.Integrate(ctx, group, match, loader, rejCfg)
			processed++
			progress.Emit(sink, progress.Event{
				Stage:    progress.StageIntegrate,
				Message:  fmt.Sprintf("integrated %s", group.Dir),
				Done:     processed,
				Total:    totalGroups,
				GroupKey: group.Filter + "/" + group.ExposureKey,
			})
			if err != nil {
				report.Groups = append(report.Groups, GroupReport{
					Dir:      group.Dir,
					Filter:   group.Filter,
					Exposure: group.ExposureKey,
					Binning:  group.Binning,
					Err:      err,
				})
				continue
			}

			outputPath := filepath.Join(cfg.OutputDir, integrate.MasterFilename(group))
			if err := fitsio.WriteXISF(outputPath, res.Master); err != nil {
				report.Groups = append(report.Groups, GroupReport{
					Dir: group.Dir, Filter: group.Filter, Exposure: group.ExposureKey, Binning: group.Binning,
					Err: fmt.Errorf("writing %s: %w", outputPath, err),
				})
				continue
			}
			if cfg.WriteFITS {
				fitsPath := strings.TrimSuffix(outputPath, ".xisf") + ".fits"
				if err := fitsio.WriteFITS(fitsPath, res.Master); err != nil {
					report.Groups = append(report.Groups, GroupReport{
						Dir: group.Dir, Filter: group.Filter, Exposure: group.ExposureKey, Binning: group.Binning,
						Err: fmt.Errorf("writing %s: %w", fitsPath, err),
					})
					continue
				}
			}

			report.Groups = append(report.Groups, reportFromResult(group.Dir, res, outputPath))
		}
	}

	return report, nil
}

func makeLoader() func(path string) (*fitsio.ImageData, error) {
	return func(path string) (*fitsio.ImageData, error) {
		switch {
		case strings.HasSuffix(strings.ToLower(path), ".xisf"):
			return fitsio.ReadXISF(path)
		default:
			return fitsio.ReadFITS(path)
		}
	}
}

func translateScanError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrInternal, err)
}
