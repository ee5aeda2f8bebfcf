package server

import (
	"net/http"
	"strings"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/apperr"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/arrange"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/canvas"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/roadmap"
)

type canvasBody struct {
	State    string          `json:"state"`
	Viewport canvas.Viewport `json:"viewport"`
	Themes   []roadmap.Theme `json:"themes"`
	Items    []canvas.Item   `json:"items"`
}

func (s *Server) canvasBody() canvasBody {
	c := s.board.Canvas()
	return canvasBody{
		State:    c.State().String(),
		Viewport: c.Viewport(),
		Themes:   c.Filter().Themes(),
		Items:    c.Visible(),
	}
}

func (s *Server) getCanvas(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.canvasBody())
}

type pointerRequest struct {
	Type string  `json:"type"` // down, move, up or cancel
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type pointerResponse struct {
	State    string          `json:"state"`
	Viewport canvas.Viewport `json:"viewport"`
}

// POST /api/canvas/pointer replays one pointer event on the canvas.
func (s *Server) pointer(w http.ResponseWriter, r *http.Request) {
	var req pointerRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	c := s.board.Canvas()
	p := canvas.Point{X: req.X, Y: req.Y}
	switch strings.ToLower(req.Type) {
	case "down":
		if _, err := c.PointerDown(p); err != nil {
			s.writeError(w, r, err)
			return
		}
	case "move":
		c.PointerMove(p)
	case "up":
		c.PointerUp(p)
	case "cancel":
		c.Cancel()
	default:
		s.writeError(w, r, apperr.New(apperr.CodeInvalidInput, "server.pointer", "unknown pointer event %q", req.Type))
		return
	}
	writeJSON(w, http.StatusOK, pointerResponse{State: c.State().String(), Viewport: c.Viewport()})
}

type zoomRequest struct {
	Direction string `json:"direction"` // in or out
}

func (s *Server) zoom(w http.ResponseWriter, r *http.Request) {
	var req zoomRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c := s.board.Canvas()
	switch strings.ToLower(req.Direction) {
	case "in":
		c.ZoomIn()
	case "out":
		c.ZoomOut()
	default:
		s.writeError(w, r, apperr.New(apperr.CodeInvalidInput, "server.zoom", "unknown zoom direction %q", req.Direction))
		return
	}
	writeJSON(w, http.StatusOK, c.Viewport())
}

func (s *Server) reset(w http.ResponseWriter, _ *http.Request) {
	c := s.board.Canvas()
	c.Reset()
	writeJSON(w, http.StatusOK, c.Viewport())
}

type filterRequest struct {
	Themes []roadmap.Theme `json:"themes"`
}

// POST /api/canvas/filter replaces the theme filter. An empty list shows
// every idea.
func (s *Server) filter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	for _, t := range req.Themes {
		if t == "" || !t.Valid() {
			s.writeError(w, r, apperr.New(apperr.CodeInvalidInput, "server.filter", "unknown theme %q", t))
			return
		}
	}
	s.board.Canvas().SetFilter(canvas.NewThemeFilter(req.Themes...))
	writeJSON(w, http.StatusOK, s.canvasBody())
}

type arrangeRequest struct {
	By string `json:"by"`
}

type arrangeResponse struct {
	Result arrange.Result `json:"result"`
	Error  *errorDetail   `json:"error,omitempty"`
}

// POST /api/canvas/arrange runs the arrangement service. A partially
// applied arrangement answers 207 with both the result and the error.
func (s *Server) arrange(w http.ResponseWriter, r *http.Request) {
	var req arrangeRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	by, err := arrange.ParseCriterion(req.By)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.board.Arrange(r.Context(), by)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, arrangeResponse{Result: res})
	case apperr.CodeOf(err) == apperr.CodePartialApply:
		detail := newErrorBody(err).Error
		writeJSON(w, http.StatusMultiStatus, arrangeResponse{Result: res, Error: &detail})
	default:
		s.writeError(w, r, err)
	}
}

func (s *Server) insights(w http.ResponseWriter, r *http.Request) {
	raw, err := s.board.Insights(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}
