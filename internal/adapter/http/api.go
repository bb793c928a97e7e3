package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/wildfire-analysis/internal/domain"
	"github.com/couchcryptid/wildfire-analysis/internal/pipeline"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 40
	maxBodyBytes       = 64 << 10
	searchTimeout      = 8 * time.Second
)

// errorBody mirrors the backend's failure shape.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type searchResponse struct {
	Results []domain.GeoPoint `json:"results"`
}

type startResponse struct {
	RunID string `json:"run_id"`
}

type cancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

type statusResponse struct {
	RunID       string           `json:"run_id,omitempty"`
	Phase       pipeline.Phase   `json:"phase"`
	Description string           `json:"description"`
	Location    *domain.GeoPoint `json:"location,omitempty"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	FinishedAt  *time.Time       `json:"finished_at,omitempty"`
	Error       *errorBody       `json:"error,omitempty"`
}

type resultResponse struct {
	Result        domain.AnalysisResult `json:"result"`
	ResultVersion uint64                `json:"result_version"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxSearchLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 40")
			return
		}
		limit = n
	}

	country := r.URL.Query().Get("country")
	if country == "" {
		country = s.api.Country
	}

	ctx, cancel := context.WithTimeout(r.Context(), searchTimeout)
	defer cancel()

	places, err := s.api.Searcher.Search(ctx, q, limit, country)
	if err != nil {
		s.logger.Warn("place search failed", "query", q, "error", err)
		writeError(w, http.StatusBadGateway, "place search is unavailable")
		return
	}
	if places == nil {
		places = []domain.GeoPoint{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, searchResponse{Results: places})
}

func (s *Server) handleGetLocation(w http.ResponseWriter, _ *http.Request) {
	snap := s.api.Store.Snapshot()
	if snap.Location == nil {
		writeError(w, http.StatusNotFound, domain.ErrNoLocationSelected.Error())
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, snap.Location)
}

func (s *Server) handlePutLocation(w http.ResponseWriter, r *http.Request) {
	var p domain.GeoPoint
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "body must be a location object")
		return
	}
	if err := s.api.Store.Select(p); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.logger.Info("location selected", "location", p.Label(), "lat", p.Latitude, "lon", p.Longitude)
	sharedobs.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) handleStartAnalysis(w http.ResponseWriter, r *http.Request) {
	// The run outlives the request.
	runID, err := s.api.Analyzer.Start(context.WithoutCancel(r.Context()))
	if err != nil {
		var f *pipeline.Failure
		if errors.As(err, &f) {
			writeError(w, http.StatusConflict, f.Message())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sharedobs.WriteJSON(w, http.StatusAccepted, startResponse{RunID: runID})
}

func (s *Server) handleCancelAnalysis(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, cancelResponse{Cancelled: s.api.Analyzer.Cancel()})
}

func (s *Server) handleAnalysisStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.api.Analyzer.Status()
	resp := statusResponse{
		RunID:       st.RunID,
		Phase:       st.Phase,
		Description: st.Phase.Description(),
		Location:    st.Location,
	}
	if !st.StartedAt.IsZero() {
		resp.StartedAt = &st.StartedAt
	}
	if !st.FinishedAt.IsZero() {
		resp.FinishedAt = &st.FinishedAt
	}
	if st.LastError != nil {
		resp.Error = &errorBody{Error: string(st.LastError.Step), Message: st.LastError.Message()}
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResult(w http.ResponseWriter, _ *http.Request) {
	snap := s.api.Store.Snapshot()
	if snap.Result == nil {
		writeError(w, http.StatusNotFound, "no analysis result yet")
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, resultResponse{Result: *snap.Result, ResultVersion: snap.ResultVersion})
}

func writeError(w http.ResponseWriter, status int, message string) {
	sharedobs.WriteJSON(w, status, errorBody{Error: http.StatusText(status), Message: message})
}
