// Command flatcal is a minimal demonstration binary driving flatcal.Run:
// its flags cover the root directories, output path, cache path, FITS
// output and the matching/rejection options. Configuration files,
// logging sinks, and a real CLI front end are left to whatever wraps
// this package for production use.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/nightflat/flatmaster/pkg/flatcal"
	"github.com/nightflat/flatmaster/pkg/progress"
)

func main() {
	flatRoots := flag.String("flats", "", "comma-separated flat-frame root directories")
	darkRoots := flag.String("darks", "", "comma-separated dark/bias root directories")
	outputDir := flag.String("out", ".", "output directory for master flats")
	cacheDB := flag.String("cache", "", "metadata cache database path (optional)")
	writeFITS := flag.Bool("fits", false, "also write a .fits sibling of each master")
	requireDarks := flag.Bool("require-darks", false, "fail a group instead of skipping it when no dark or bias matches")
	enforceBinning := flag.Bool("enforce-binning", true, "score a candidate dark higher when it shares the flat's binning")
	preferGainOffset := flag.Bool("prefer-gain-offset", true, "prefer darks matching the flat's gain and offset")
	preferTemp := flag.Bool("prefer-temp", true, "prefer darks matching the flat's sensor temperature")
	maxTempDelta := flag.Float64("max-temp-delta", 5.0, "largest temperature difference (C) that still earns a scoring bonus")
	allowNearest := flag.Bool("allow-nearest", true, "allow matching a near-exposure dark (scaled by exposure ratio when more than 2s away) instead of only exact or bias fallback")
	lowSigma := flag.Float64("low-sigma", 5.0, "winsorized sigma-clip low threshold for stacks of six or more frames")
	highSigma := flag.Float64("high-sigma", 5.0, "winsorized sigma-clip high threshold for stacks of six or more frames")
	flag.Parse()

	if *flatRoots == "" || *darkRoots == "" {
		fmt.Fprintln(os.Stderr, "usage: flatcal -flats=dir1,dir2 -darks=dir1,dir2 [-out=dir] [-cache=path] [-fits] [-require-darks] ...")
		os.Exit(2)
	}

	cfg := flatcal.ProcessingConfiguration{
		OutputDir:                *outputDir,
		CacheDBPath:              *cacheDB,
		WriteFITS:                *writeFITS,
		RequireDarks:             *requireDarks,
		EnforceBinning:           *enforceBinning,
		PreferSameGainOffset:     *preferGainOffset,
		PreferClosestTemp:        *preferTemp,
		MaxTempDeltaC:            *maxTempDelta,
		AllowNearestWithOptimize: *allowNearest,
		RejectionLowSigma:        *lowSigma,
		RejectionHighSigma:       *highSigma,
	}

	events := make(chan progress.Event, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range events {
			fmt.Printf("[%s] %s\n", e.Stage, e.Message)
		}
	}()

	report, err := flatcal.Run(context.Background(), splitRoots(*flatRoots), splitRoots(*darkRoots), cfg, progress.ChanSink(events))
	close(events)
	<-done

	if err != nil {
		fmt.Fprintln(os.Stderr, "flatcal:", err)
		os.Exit(1)
	}

	fmt.Print(report.String())
}

func splitRoots(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
