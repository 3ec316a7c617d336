package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mag/maggo/internal/grid"
	"github.com/mag/maggo/internal/metrics"
	"github.com/mag/maggo/internal/model"
	"github.com/mag/maggo/internal/synthesis"
)

// fieldResponse is the JSON shape of a point query. Component units are nT
// for /field and nT/year for /field/sv.
type fieldResponse struct {
	Date           float64 `json:"date"`
	LatDeg         float64 `json:"lat"`
	LonDeg         float64 `json:"lon"`
	AltKm          float64 `json:"alt_km"`
	North          float64 `json:"x"`
	East           float64 `json:"y"`
	Vertical       float64 `json:"z"`
	Horizontal     float64 `json:"h"`
	Total          float64 `json:"f"`
	DeclinationDeg float64 `json:"d"`
	InclinationDeg float64 `json:"i"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps synthesis errors to HTTP status codes: bad parameters are
// the caller's problem (400), a date outside the model window is a valid
// request the model cannot serve (422).
func statusFor(err error) int {
	var oor *model.OutOfRangeError
	if errors.As(err, &oor) {
		return http.StatusUnprocessableEntity
	}
	var inv *synthesis.InvalidInputError
	if errors.As(err, &inv) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// queryFloat parses a required float query parameter.
func queryFloat(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("missing required parameter %q", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %q must be a number", name)
	}
	return v, nil
}

// queryFloatDefault parses an optional float query parameter.
func queryFloatDefault(r *http.Request, name string, def float64) (float64, error) {
	if r.URL.Query().Get(name) == "" {
		return def, nil
	}
	return queryFloat(r, name)
}

// parsePointRequest builds a synthesis.Request from query parameters.
// Geodetic form: date, lat, lon, alt (km, default 0). Geocentric form
// (point=geocentric): date, colat, lon, radius (km).
func parsePointRequest(r *http.Request) (synthesis.Request, error) {
	date, err := queryFloat(r, "date")
	if err != nil {
		return synthesis.Request{}, err
	}

	if r.URL.Query().Get("point") == "geocentric" {
		colat, err := queryFloat(r, "colat")
		if err != nil {
			return synthesis.Request{}, err
		}
		lon, err := queryFloat(r, "lon")
		if err != nil {
			return synthesis.Request{}, err
		}
		radius, err := queryFloat(r, "radius")
		if err != nil {
			return synthesis.Request{}, err
		}
		return synthesis.Request{
			Date:          date,
			Point:         synthesis.Geocentric,
			AltOrRadiusKm: radius,
			ColatDeg:      colat,
			ElongDeg:      lon,
		}, nil
	}

	lat, err := queryFloat(r, "lat")
	if err != nil {
		return synthesis.Request{}, err
	}
	lon, err := queryFloat(r, "lon")
	if err != nil {
		return synthesis.Request{}, err
	}
	alt, err := queryFloatDefault(r, "alt", 0)
	if err != nil {
		return synthesis.Request{}, err
	}
	return synthesis.GeodeticRequest(date, lat, lon, alt), nil
}

// evaluator builds a synthesis evaluator over the active table.
func (s *Server) evaluator() *synthesis.Evaluator {
	var opts []synthesis.Option
	if s.cfg.SuppressAdvisories {
		opts = append(opts, synthesis.WithAdvisoriesSuppressed())
	}
	return synthesis.NewEvaluator(s.store.Get(), s.logger, opts...)
}

func (s *Server) handleField(w http.ResponseWriter, r *http.Request) {
	s.handlePoint(w, r, false)
}

func (s *Server) handleSecularVariation(w http.ResponseWriter, r *http.Request) {
	s.handlePoint(w, r, true)
}

func (s *Server) handlePoint(w http.ResponseWriter, r *http.Request, rate bool) {
	if s.store.Get() == nil {
		writeError(w, http.StatusServiceUnavailable, "no coefficient table loaded")
		return
	}

	req, err := parsePointRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	eval := s.evaluator()
	var fv synthesis.FieldVector
	if rate {
		fv, err = eval.SecularVariation(req)
	} else {
		fv, err = eval.Field(req)
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, fieldResponse{
		Date:           req.Date,
		LatDeg:         90 - req.ColatDeg,
		LonDeg:         req.ElongDeg,
		AltKm:          req.AltOrRadiusKm,
		North:          fv.North,
		East:           fv.East,
		Vertical:       fv.Vertical,
		Horizontal:     fv.Horizontal(),
		Total:          fv.Total,
		DeclinationDeg: fv.DeclinationDeg(),
		InclinationDeg: fv.InclinationDeg(),
	})
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	table := s.store.Get()
	if table == nil {
		writeError(w, http.StatusServiceUnavailable, "no coefficient table loaded")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"source":       table.Source(),
		"first_epoch":  table.FirstEpoch(),
		"last_epoch":   table.LastEpoch(),
		"min_date":     table.MinDate(),
		"max_date":     table.MaxDate(),
		"horizon_date": table.HorizonDate(),
		"max_degree":   table.MaxDegree(),
		"epochs":       table.Epochs(),
	})
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	if s.store.Get() == nil {
		writeError(w, http.StatusServiceUnavailable, "no coefficient table loaded")
		return
	}

	date, err := queryFloat(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	alt, err := queryFloatDefault(r, "alt", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	latStep, err := queryFloatDefault(r, "lat_step", 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	lonStep, err := queryFloatDefault(r, "lon_step", 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if latStep < s.cfg.GridMinStepDeg || lonStep < s.cfg.GridMinStepDeg {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("grid steps must be at least %g degrees", s.cfg.GridMinStepDeg))
		return
	}

	// Reject a bad date once instead of once per grid point.
	if _, err := s.store.Get().Select(date, false); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	spec := grid.Spec{Date: date, AltKm: alt, LatStepDeg: latStep, LonStepDeg: lonStep}
	samples, success, failed := s.pool.EvaluateBatch(r.Context(), s.evaluator(), spec)

	writeJSON(w, http.StatusOK, map[string]any{
		"date":    date,
		"alt_km":  alt,
		"count":   success,
		"errors":  failed,
		"samples": samples,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusNotImplemented, "coefficient refresh is disabled")
		return
	}

	table, err := s.refresher.Refresh(r.Context())
	if err != nil {
		s.logger.Error("coefficient refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	metrics.SetModelLastEpoch(table.LastEpoch())

	writeJSON(w, http.StatusOK, map[string]any{
		"source":      table.Source(),
		"first_epoch": table.FirstEpoch(),
		"last_epoch":  table.LastEpoch(),
		"max_degree":  table.MaxDegree(),
	})
}
