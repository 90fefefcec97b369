package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/terrain-cli/internal/pipeline"
	"github.com/sells-group/terrain-cli/internal/report"
	"github.com/sells-group/terrain-cli/internal/store"
	"github.com/sells-group/terrain-cli/internal/terrain"
)

type airportResponse struct {
	*pipeline.Inspection
	GoogleEarthURL string `json:"google_earth_url"`
	FAAURL         string `json:"faa_url,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAirport(w http.ResponseWriter, r *http.Request) {
	ident := chi.URLParam(r, "ident")

	in := s.base
	var err error
	if in.Spec.RadiusKM, err = floatParam(r, "radius_km", in.Spec.RadiusKM); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Spec.StepKM, err = floatParam(r, "step_km", in.Spec.StepKM); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if in.Catalog != nil {
		if _, ok := in.Catalog.Find(ident); !ok {
			writeError(w, http.StatusNotFound, "airport "+ident+" not found")
			return
		}
	}

	insp, err := pipeline.Inspect(r.Context(), in, ident)
	if err != nil {
		writeError(w, inspectStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, airportResponse{
		Inspection:     insp,
		GoogleEarthURL: report.GoogleEarthURL(insp.Record.LatitudeDeg, insp.Record.LongitudeDeg, insp.Spec.RadiusKM),
		FAAURL:         report.FAAURL(insp.Record.LocalCode),
	})
}

func inspectStatus(err error) int {
	var inputErr *terrain.InputError
	var emptyErr *terrain.EmptyGridError
	var noData *terrain.NoDataError
	switch {
	case terrain.IsFatal(err):
		return http.StatusServiceUnavailable
	case errors.As(err, &inputErr):
		return http.StatusBadRequest
	case errors.As(err, &emptyErr), errors.As(err, &noData):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no store configured")
		return
	}

	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := intParam(r, "offset")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runs, err := s.store.ListRuns(r.Context(), store.RunFilter{
		Status: store.RunStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.storeError(w, err)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no store configured")
		return
	}

	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no store configured")
		return
	}

	id := chi.URLParam(r, "id")
	cat := terrain.Category(r.URL.Query().Get("category"))
	if cat != "" && cat != terrain.CategoryMountain && cat != terrain.CategoryMountainTop {
		writeError(w, http.StatusBadRequest, "unknown category "+string(cat))
		return
	}

	if _, err := s.store.GetRun(r.Context(), id); err != nil {
		s.storeError(w, err)
		return
	}

	results, err := s.store.ListResults(r.Context(), id, cat)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if results == nil {
		results = []store.Result{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	zap.L().Error("server: store error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func floatParam(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return 0, errors.New(name + " must be a positive number")
	}
	return v, nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
