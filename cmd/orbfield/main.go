// orbfield propagates a satellite TLE with SGP4 and samples the geomagnetic
// field along the ground track, as an attitude-control or magnetotorquer
// model would.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/mag/maggo/internal/model"
	"github.com/mag/maggo/internal/synthesis"
)

func main() {
	tlePath := flag.String("tle", "", "path to a 2- or 3-line TLE file")
	minutes := flag.Int("minutes", 90, "track duration in minutes")
	stepSec := flag.Int("step", 60, "sampling step in seconds")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if *tlePath == "" {
		fmt.Fprintln(os.Stderr, "usage: orbfield -tle <file> [-minutes N] [-step S]")
		os.Exit(2)
	}

	line1, line2, err := readTLE(*tlePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR reading TLE:", err)
		os.Exit(1)
	}

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		fmt.Fprintf(os.Stderr, "ERROR: sgp4 init failed: code=%d %s\n", sat.Error, sat.ErrorStr)
		os.Exit(1)
	}

	eval := synthesis.NewEvaluator(model.Default(), logger)

	start := time.Now().UTC()
	fmt.Printf("Track start: %v\n", start.Format(time.RFC3339))
	fmt.Printf("%-9s %9s %9s %9s %11s %9s %9s\n", "t+", "lat°", "lon°E", "alt km", "F nT", "D°", "I°")

	for elapsed := 0; elapsed <= *minutes*60; elapsed += *stepSec {
		tt := start.Add(time.Duration(elapsed) * time.Second)

		pos, _ := satellite.Propagate(sat, tt.Year(), int(tt.Month()), tt.Day(), tt.Hour(), tt.Minute(), tt.Second())
		if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) {
			fmt.Fprintf(os.Stderr, "propagation failed at t+%ds, skipping\n", elapsed)
			continue
		}

		gmst := satellite.GSTimeFromDate(tt.Year(), int(tt.Month()), tt.Day(), tt.Hour(), tt.Minute(), tt.Second())
		altKm, _, ll := satellite.ECIToLLA(pos, gmst)
		latDeg := ll.Latitude * 180 / math.Pi
		lonDeg := ll.Longitude * 180 / math.Pi

		field, err := eval.Field(synthesis.GeodeticRequest(model.DecimalYear(tt), latDeg, lonDeg, altKm))
		if err != nil {
			fmt.Fprintf(os.Stderr, "synthesis failed at t+%ds: %v\n", elapsed, err)
			continue
		}

		fmt.Printf("%-9s %9.3f %9.3f %9.1f %11.1f %9.3f %9.3f\n",
			fmt.Sprintf("+%dm%ds", elapsed/60, elapsed%60),
			latDeg, lonDeg, altKm,
			field.Total, field.DeclinationDeg(), field.InclinationDeg(),
		)
	}
}

// readTLE extracts the two element lines from a 2- or 3-line TLE file.
// Validates line shape before handing off to the SGP4 library, which is not
// defensive about malformed input.
func readTLE(path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}

	var lines []string
	for _, l := range strings.Split(string(data), "\n") {
		l = strings.TrimRight(l, "\r ")
		if l != "" {
			lines = append(lines, l)
		}
	}

	for i := 0; i+1 < len(lines); i++ {
		if strings.HasPrefix(lines[i], "1 ") && strings.HasPrefix(lines[i+1], "2 ") {
			line1, line2 := lines[i], lines[i+1]
			if len(line1) != 69 {
				return "", "", fmt.Errorf("line1 length %d, expected 69", len(line1))
			}
			if len(line2) != 69 {
				return "", "", fmt.Errorf("line2 length %d, expected 69", len(line2))
			}
			return line1, line2, nil
		}
	}
	return "", "", fmt.Errorf("no TLE line pair found in %s", path)
}
