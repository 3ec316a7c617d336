// magpoint evaluates the geomagnetic field at a single point and prints the
// standard elements (X, Y, Z, H, F, D, I) and their secular variation.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/mag/maggo/internal/model"
	"github.com/mag/maggo/internal/synthesis"
)

func main() {
	_ = godotenv.Load()

	date := flag.Float64("date", model.DecimalYear(time.Now()), "decimal year, e.g. 2020.0")
	lat := flag.Float64("lat", 0, "geodetic latitude, degrees north")
	lon := flag.Float64("lon", 0, "longitude, degrees east")
	alt := flag.Float64("alt", 0, "altitude above the ellipsoid, km")
	geocentric := flag.Bool("geocentric", false, "treat -lat as geocentric latitude and -radius as distance from Earth's center")
	radius := flag.Float64("radius", model.ReferenceRadiusKm, "geocentric radius, km (with -geocentric)")
	quiet := flag.Bool("quiet", false, "suppress extrapolation advisories")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	var opts []synthesis.Option
	if *quiet {
		opts = append(opts, synthesis.WithAdvisoriesSuppressed())
	}
	eval := synthesis.NewEvaluator(model.Default(), logger, opts...)

	var req synthesis.Request
	if *geocentric {
		req = synthesis.Request{
			Date:          *date,
			Point:         synthesis.Geocentric,
			AltOrRadiusKm: *radius,
			ColatDeg:      90 - *lat,
			ElongDeg:      normalizeLon(*lon),
		}
	} else {
		req = synthesis.GeodeticRequest(*date, *lat, *lon, *alt)
	}

	field, err := eval.Field(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
	sv, err := eval.SecularVariation(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}

	fmt.Printf("Date %.3f  lat %.4f°  lon %.4f°  alt %.1f km\n", *date, *lat, *lon, *alt)
	fmt.Printf("  X (north)    %10.1f nT   %+7.1f nT/yr\n", field.North, sv.North)
	fmt.Printf("  Y (east)     %10.1f nT   %+7.1f nT/yr\n", field.East, sv.East)
	fmt.Printf("  Z (down)     %10.1f nT   %+7.1f nT/yr\n", field.Vertical, sv.Vertical)
	fmt.Printf("  H (horiz)    %10.1f nT\n", field.Horizontal())
	fmt.Printf("  F (total)    %10.1f nT\n", field.Total)
	fmt.Printf("  D (decl)     %10.3f°\n", field.DeclinationDeg())
	fmt.Printf("  I (incl)     %10.3f°\n", field.InclinationDeg())
}

func normalizeLon(lon float64) float64 {
	for lon < 0 {
		lon += 360
	}
	for lon >= 360 {
		lon -= 360
	}
	return lon
}
