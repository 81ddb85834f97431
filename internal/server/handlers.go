package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sells-group/store-locator/internal/locator"
	"github.com/sells-group/store-locator/internal/view"
)

const maxBodyBytes = 64 << 10

type createSessionRequest struct {
	Address     string   `json:"address" validate:"max=512"`
	RadiusMiles *float64 `json:"radius_miles" validate:"omitempty,gt=0,lte=500"`
	// SkipInit suppresses the initial search around the default map center.
	SkipInit bool `json:"skip_init"`
}

type addressRequest struct {
	Address string `json:"address" validate:"max=512"`
}

type searchRequest struct {
	RadiusMiles *float64 `json:"radius_miles" validate:"omitempty,gt=0,lte=500"`
}

type sessionResponse struct {
	ID          string             `json:"id"`
	CreatedAt   time.Time          `json:"created_at"`
	State       string             `json:"state"`
	Address     string             `json:"address"`
	RadiusMiles float64            `json:"radius_miles"`
	Error       string             `json:"error,omitempty"`
	Results     []locator.Facility `json:"results"`
	View        view.Snapshot      `json:"view"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !s.decode(w, r, &req) {
		return
	}

	sess := s.newSession()
	ctx := r.Context()
	if req.Address != "" {
		_ = sess.disp.Dispatch(ctx, locator.AddressChanged{Text: req.Address})
	}
	if req.RadiusMiles != nil {
		_ = sess.disp.Dispatch(ctx, locator.RadiusChanged{Miles: *req.RadiusMiles})
	}

	var err error
	if !req.SkipInit {
		err = sess.disp.Dispatch(ctx, locator.Init{})
	}
	zap.L().Info("session created", zap.String("session", sess.id))
	writeJSON(w, http.StatusCreated, sess.response(err))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.response(nil))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !s.remove(chi.URLParam(r, "id")) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddress(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req addressRequest
	if !s.decode(w, r, &req) {
		return
	}
	_ = sess.disp.Dispatch(r.Context(), locator.AddressChanged{Text: req.Address})
	writeJSON(w, http.StatusOK, sess.response(nil))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.RadiusMiles != nil {
		_ = sess.disp.Dispatch(r.Context(), locator.RadiusChanged{Miles: *req.RadiusMiles})
	}

	err := sess.disp.Dispatch(r.Context(), locator.Submit{})
	if errors.Is(err, locator.ErrSuperseded) {
		writeJSON(w, http.StatusConflict, sess.response(err))
		return
	}
	// Failures are reported in the status banner, not as HTTP errors.
	writeJSON(w, http.StatusOK, sess.response(err))
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || idx < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "index must be a non-negative integer"})
		return
	}
	if !sess.surfaces.Map.ClickMarker(idx) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("no marker at index %d", idx)})
		return
	}
	writeJSON(w, http.StatusOK, sess.response(nil))
}

func (s *Server) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	data, err := sess.surfaces.Map.GeoJSON()
	if err != nil {
		zap.L().Error("encode geojson", zap.String("session", sess.id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "encode geojson"})
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session, bool) {
	sess, ok := s.lookup(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
	}
	return sess, ok
}

// decode reads an optional JSON body into dst and validates it. An empty
// body leaves dst at its zero value.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationMessage(err)})
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

func (sess *session) response(err error) sessionResponse {
	ctrl := sess.disp.Controller()
	resp := sessionResponse{
		ID:          sess.id,
		CreatedAt:   sess.created,
		State:       ctrl.State().String(),
		Address:     ctrl.Address(),
		RadiusMiles: sess.disp.RadiusMiles(),
		Results:     ctrl.Results().Facilities,
		View:        sess.surfaces.Capture(),
	}
	switch {
	case err == nil:
	case errors.Is(err, locator.ErrSuperseded):
		resp.Error = "superseded"
	default:
		resp.Error = locator.KindOf(err).String()
	}
	if resp.Results == nil {
		resp.Results = []locator.Facility{}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}
