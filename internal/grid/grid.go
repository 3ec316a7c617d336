// Package grid evaluates the field over a latitude/longitude grid using a
// fixed-size worker pool. Each grid point is an independent synthesis call,
// so the work parallelizes without synchronization beyond the channels.
package grid

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mag/maggo/internal/metrics"
	"github.com/mag/maggo/internal/synthesis"
)

// Point is one grid location.
type Point struct {
	LatDeg float64 `json:"lat"`
	LonDeg float64 `json:"lon"`
}

// Sample is the synthesized field at one grid point.
type Sample struct {
	Point
	Field synthesis.FieldVector `json:"field"`
}

// Spec describes a regular global grid at one date and altitude.
type Spec struct {
	Date       float64
	AltKm      float64
	LatStepDeg float64
	LonStepDeg float64
}

// Points enumerates the grid locations: latitude from -90 to +90 inclusive,
// longitude from 0 up to (not including) 360.
func (s Spec) Points() []Point {
	var pts []Point
	for lat := -90.0; lat <= 90.0; lat += s.LatStepDeg {
		for lon := 0.0; lon < 360.0; lon += s.LonStepDeg {
			pts = append(pts, Point{LatDeg: lat, LonDeg: lon})
		}
	}
	return pts
}

// evalJob is a unit of work for the worker pool.
type evalJob struct {
	point Point
}

// evalResult is the output of one grid-point synthesis.
type evalResult struct {
	sample Sample
	err    error
}

// Pool manages a fixed number of goroutines for parallel field evaluation.
type Pool struct {
	workers int
	logger  *slog.Logger
}

// NewPool creates a worker pool with the given number of workers.
func NewPool(workers int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		workers: workers,
		logger:  logger,
	}
}

// EvaluateBatch synthesizes the field at every point of the grid spec using
// the worker pool. Returns the successful samples plus success/error counts.
// Failed points are logged and skipped.
func (p *Pool) EvaluateBatch(ctx context.Context, eval *synthesis.Evaluator, spec Spec) ([]Sample, int, int) {
	points := spec.Points()
	if len(points) == 0 {
		return nil, 0, 0
	}

	start := time.Now()

	jobs := make(chan evalJob, p.workers*2)
	results := make(chan evalResult, p.workers*2)

	// Start workers.
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				req := synthesis.GeodeticRequest(spec.Date, job.point.LatDeg, job.point.LonDeg, spec.AltKm)
				fv, err := eval.Field(req)
				result := evalResult{sample: Sample{Point: job.point, Field: fv}, err: err}
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Feed jobs in a goroutine.
	go func() {
		defer close(jobs)
		for _, pt := range points {
			select {
			case jobs <- evalJob{point: pt}:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Close results when all workers are done.
	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results.
	samples := make([]Sample, 0, len(points))
	var successCount, errorCount int

	for result := range results {
		if result.err != nil {
			errorCount++
			p.logger.Warn("grid point evaluation failed",
				"lat", result.sample.LatDeg,
				"lon", result.sample.LonDeg,
				"error", result.err,
			)
			continue
		}
		successCount++
		samples = append(samples, result.sample)
	}

	metrics.RecordGridBatch(time.Since(start), successCount, errorCount)

	return samples, successCount, errorCount
}
