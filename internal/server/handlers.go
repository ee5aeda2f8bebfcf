package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/apperr"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/board"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/roadmap"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/timeline"
)

// GET /api/timeline?year=&zoom=&density=&expanded=&format=json|svg
func (s *Server) getTimeline(w http.ResponseWriter, r *http.Request) {
	q, err := timelineQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.board.Timeline(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "json":
		writeJSON(w, http.StatusOK, view)
	case "svg":
		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = w.Write([]byte(view.SVG(s.style)))
	default:
		s.writeError(w, r, apperr.New(apperr.CodeInvalidInput, "server.timeline", "unknown format %q", r.URL.Query().Get("format")))
	}
}

func timelineQuery(r *http.Request) (board.TimelineQuery, error) {
	const op = "server.timeline"
	v := r.URL.Query()
	var q board.TimelineQuery

	if y := v.Get("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			return q, apperr.Wrap(err, apperr.CodeInvalidInput, op, "year")
		}
		q.Year = year
	}
	if z := v.Get("zoom"); z != "" {
		zoom, err := timeline.ParseZoom(z)
		if err != nil {
			return q, apperr.Wrap(err, apperr.CodeInvalidInput, op, "zoom")
		}
		q.Zoom = zoom
	}
	if d := v.Get("density"); d != "" {
		density, err := timeline.ParseDensity(d)
		if err != nil {
			return q, apperr.Wrap(err, apperr.CodeInvalidInput, op, "density")
		}
		q.Density = density
	}
	for _, e := range v["expanded"] {
		for _, id := range strings.Split(e, ",") {
			if id = strings.TrimSpace(id); id != "" {
				q.Expanded = append(q.Expanded, id)
			}
		}
	}
	return q, nil
}

func (s *Server) listFeatures(w http.ResponseWriter, r *http.Request) {
	features, err := s.board.Features(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, features)
}

func (s *Server) getFeature(w http.ResponseWriter, r *http.Request) {
	f, err := s.board.Feature(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) createFeature(w http.ResponseWriter, r *http.Request) {
	var in roadmap.Feature
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.board.CreateFeature(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) updateFeature(w http.ResponseWriter, r *http.Request) {
	var p roadmap.FeaturePatch
	if err := decode(r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.board.UpdateFeature(r.Context(), r.PathValue("id"), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) deleteFeature(w http.ResponseWriter, r *http.Request) {
	if err := s.board.DeleteFeature(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) recordOutcome(w http.ResponseWriter, r *http.Request) {
	var o board.Outcome
	if err := decode(r, &o); err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.board.RecordOutcome(r.Context(), r.PathValue("id"), o)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) listIdeas(w http.ResponseWriter, r *http.Request) {
	ideas, err := s.board.Ideas(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ideas)
}

func (s *Server) getIdea(w http.ResponseWriter, r *http.Request) {
	i, err := s.board.Idea(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, i)
}

func (s *Server) createIdea(w http.ResponseWriter, r *http.Request) {
	var in roadmap.Idea
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	i, err := s.board.CreateIdea(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, i)
}

func (s *Server) updateIdea(w http.ResponseWriter, r *http.Request) {
	var p roadmap.IdeaPatch
	if err := decode(r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	i, err := s.board.UpdateIdea(r.Context(), r.PathValue("id"), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, i)
}

func (s *Server) deleteIdea(w http.ResponseWriter, r *http.Request) {
	if err := s.board.DeleteIdea(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// conversionBody is returned with 409 when a conversion is half applied.
type conversionBody struct {
	errorBody
	IdeaID      string `json:"idea_id"`
	FeatureID   string `json:"feature_id"`
	Compensated bool   `json:"compensated"`
}

// POST /api/ideas/{id}/convert[?compensate=true]
//
// With compensate=true a half-applied conversion is undone before the
// response is written.
func (s *Server) convertIdea(w http.ResponseWriter, r *http.Request) {
	var req board.ConvertRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.board.ConvertIdea(r.Context(), r.PathValue("id"), req)
	if err == nil {
		writeJSON(w, http.StatusCreated, f)
		return
	}

	var cerr *board.ConversionError
	if !errors.As(err, &cerr) {
		s.writeError(w, r, err)
		return
	}
	body := conversionBody{errorBody: newErrorBody(err), IdeaID: cerr.IdeaID, FeatureID: cerr.FeatureID}
	if compensate, _ := strconv.ParseBool(r.URL.Query().Get("compensate")); compensate {
		if err := s.board.Compensate(r.Context(), cerr); err != nil {
			s.writeError(w, r, err)
			return
		}
		body.Compensated = true
	}
	writeJSON(w, http.StatusConflict, body)
}
