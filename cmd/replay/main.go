package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"backend-runtracker/internal/config"
	"backend-runtracker/internal/gpsfilter"
	"backend-runtracker/internal/replay"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()

	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		input       = fs.String("i", "", "Input GPX file")
		asJSON      = fs.Bool("json", false, "Print the full result as JSON")
		threshold   = fs.Float64("segment", cfg.SegmentThresholdMeters, "Segment length in meters")
		maxAccuracy = fs.Float64("max-accuracy", cfg.MaxAccuracyMeters, "Reject fixes with accuracy above this radius (m)")
		minDistance = fs.Float64("min-distance", cfg.MinDistanceMeters, "Ignore movement below this distance (m)")
		maxSpeed    = fs.Float64("max-speed", cfg.MaxSpeedKmh, "Reject implied speeds above this (km/h)")
	)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "replay - run a GPX track through the distance engine\n\n")
		fmt.Fprintf(stderr, "usage: replay -i track.gpx [-json]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *input == "" {
		fs.Usage()
		return 2
	}

	filter := gpsfilter.Config{
		MaxAccuracyMeters: *maxAccuracy,
		MinDistanceMeters: *minDistance,
		MaxSpeedKmh:       *maxSpeed,
	}
	if err := filter.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid filter: %v\n", err)
		return 2
	}

	fixes, err := replay.LoadGPX(*input)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading GPX file: %v\n", err)
		return 1
	}
	res := replay.Run(fixes, filter, *threshold)

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			fmt.Fprintf(stderr, "encode: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Fprintf(stdout, "fixes:     %d\n", res.Fixes)
	fmt.Fprintf(stdout, "distance:  %.1f m\n", res.TotalDistance)
	fmt.Fprintf(stdout, "duration:  %.0f s\n", res.DurationSec)
	fmt.Fprintf(stdout, "net:       %.1f m\n", res.Displacement)
	fmt.Fprintf(stdout, "segments:  %d\n", len(res.Segments))

	reasons := make([]gpsfilter.RejectReason, 0, len(res.Rejected))
	for r := range res.Rejected {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	for _, r := range reasons {
		fmt.Fprintf(stdout, "rejected:  %-20s %d\n", r, res.Rejected[r])
	}
	return 0
}
