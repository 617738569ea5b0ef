// Package scan walks one or more root directories, groups flat frames by
// (filter, exposure key, binning), and catalogs dark/bias frames found
// under a separate set of roots.
package scan

import "github.com/nightflat/flatmaster/pkg/metadata"

// minGroupSize is the smallest number of flat frames worth integrating:
// below this, rejection statistics are too noisy to be meaningful, so the
// group is skipped and reported rather than silently stacked.
const minGroupSize = 3

// ExposureGroup is a set of flat frames that share filter, exposure key
// and binning, discovered under one directory. Frames are kept sorted
// case-insensitively by filename so stacking order is deterministic.
type ExposureGroup struct {
	Dir string

	Filter string

	Exposure    float64
	HasExposure bool
	ExposureKey string

	Binning string

	Frames []*metadata.ImageMetadata
}

// DirectoryJob is one directory's scan result: the groups found in it and
// any frames skipped for falling under minGroupSize.
type DirectoryJob struct {
	Dir         string
	Groups      []*ExposureGroup
	SkippedTiny []*ExposureGroup
}

// DarkFrame is a cataloged dark or bias frame available for matching
// against a flat group.
type DarkFrame struct {
	Meta *metadata.ImageMetadata
	// UserSelected marks a frame the caller explicitly pinned for a
	// group, bypassing automatic matching. Nothing in this package sets
	// it; it exists for callers that let an operator override the
	// matcher's pick.
	UserSelected bool
}

// darkClassTypes are the frame types eligible for tiers 1-3 of matching:
// real or master darks, optionally paired with a flat (dark-flats).
var darkClassTypes = map[metadata.FrameType]bool{
	metadata.FrameMasterDarkFlat: true,
	metadata.FrameDarkFlat:       true,
	metadata.FrameMasterDark:     true,
	metadata.FrameDark:           true,
}

// biasClassTypes are the frame types eligible for the bias-fallback tier.
var biasClassTypes = map[metadata.FrameType]bool{
	metadata.FrameMasterBias: true,
	metadata.FrameBias:       true,
}

// DarkCatalog partitions cataloged frames by class once at construction,
// so the matcher can scan just the dark-class or bias-class candidates
// for a group without re-filtering the whole catalog each time.
type DarkCatalog struct {
	darkClass []*DarkFrame
	biasClass []*DarkFrame
}

// NewDarkCatalog partitions frames into the dark-class and bias-class
// candidate sets the matcher scans per group.
func NewDarkCatalog(frames []*DarkFrame) *DarkCatalog {
	c := &DarkCatalog{}
	for _, f := range frames {
		switch {
		case darkClassTypes[f.Meta.FrameType]:
			c.darkClass = append(c.darkClass, f)
		case biasClassTypes[f.Meta.FrameType]:
			c.biasClass = append(c.biasClass, f)
		}
	}
	return c
}

// DarkClass returns every cataloged dark/dark-flat/master-dark/
// master-dark-flat frame.
func (c *DarkCatalog) DarkClass() []*DarkFrame {
	return c.darkClass
}

// BiasClass returns every cataloged bias/master-bias frame.
func (c *DarkCatalog) BiasClass() []*DarkFrame {
	return c.biasClass
}

// All returns every cataloged dark-class and bias-class frame.
func (c *DarkCatalog) All() []*DarkFrame {
	out := make([]*DarkFrame, 0, len(c.darkClass)+len(c.biasClass))
	out = append(out, c.darkClass...)
	out = append(out, c.biasClass...)
	return out
}

// Tally collects the session-scoped diagnostic counters the scanner
// reports alongside its groups: directories visited and pruned, and
// groups skipped for falling under the minimum stack size.
type Tally struct {
	DirsVisited   int
	DirsPruned    int
	GroupsSkipped int
}
