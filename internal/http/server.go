package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/cartridge/forager/internal/agent"
	"github.com/cartridge/forager/internal/grid"
	"github.com/cartridge/forager/internal/metrics"
	"github.com/cartridge/forager/internal/middleware"
	"github.com/cartridge/forager/internal/runner"
	"github.com/cartridge/forager/internal/storage"
)

const (
	defaultTransitionLimit = 100
	maxTransitionLimit     = 10000
)

var (
	errStateNotFound = errors.New("state not found")
	errBadRequest    = errors.New("bad request")
)

// Server wires HTTP handlers to the runner.
type Server struct {
	runner *runner.Runner
	logger zerolog.Logger
}

// NewServer constructs a Server instance.
func NewServer(r *runner.Runner, logger zerolog.Logger) *Server {
	return &Server{runner: r, logger: logger}
}

// Routes builds the HTTP router. Every read goes through the runner so
// it is serialized against ticking.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Metrics(metrics.NewCollector(s.logger)))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", s.handleHealth)
		r.Get("/agent", s.handleAgent)
		r.Get("/grid", s.handleGrid)
		r.Get("/qtable", s.handleQTable)
		r.Get("/cells", s.handleCellAt)
		r.Get("/cells/{state}", s.handleCell)
		r.Get("/transitions", s.handleTransitions)
		r.Get("/stats", s.handleStats)
		r.Post("/tick", s.handleTick)
	})
	return r
}

// CellView describes one cell and its learned action values.
type CellView struct {
	State        int                `json:"state"`
	X            int                `json:"x"`
	Y            int                `json:"y"`
	Blocked      bool               `json:"blocked"`
	HasFood      bool               `json:"has_food"`
	Agent        bool               `json:"agent"`
	Q            map[string]float64 `json:"q"`
	ValidActions []grid.Action      `json:"valid_actions"`
	GreedyAction *grid.Action       `json:"greedy_action,omitempty"`
}

// GridView is the full layout.
type GridView struct {
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	AgentState int         `json:"agent_state"`
	StartState int         `json:"start_state"`
	Cells      []grid.Cell `json:"cells"`
}

// QTableView is the learned table with its clamp range.
type QTableView struct {
	States  int           `json:"states"`
	Actions []grid.Action `json:"actions"`
	MinQ    float64       `json:"min_q"`
	MaxQ    float64       `json:"max_q"`
	Values  [][]float64   `json:"values"`
}

// TickResponse is the outcome of POST /tick.
type TickResponse struct {
	runner.Tick
	Warning string `json:"warning,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": s.runner.Status()}
	if err := s.runner.Err(); err != nil {
		status = http.StatusServiceUnavailable
		body["error"] = err.Error()
	}
	s.writeJSON(w, status, body)
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.runner.Snapshot())
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	var view GridView
	s.runner.View(func(a *agent.Agent) {
		view = GridView{
			Width:      a.Width(),
			Height:     a.Height(),
			AgentState: a.State(),
			StartState: a.StartState(),
			Cells:      a.Cells(),
		}
	})
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleQTable(w http.ResponseWriter, r *http.Request) {
	var view QTableView
	s.runner.View(func(a *agent.Agent) {
		min, max := a.QBounds()
		view = QTableView{
			States:  a.States(),
			Actions: grid.Actions[:],
			MinQ:    min,
			MaxQ:    max,
			Values:  a.QTable(),
		}
	})
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCell(w http.ResponseWriter, r *http.Request) {
	state, err := strconv.Atoi(chi.URLParam(r, "state"))
	if err != nil {
		s.respondError(w, fmt.Errorf("%w: state must be an integer", errBadRequest))
		return
	}
	view, err := s.cellView(func(a *agent.Agent) (int, bool) {
		return state, a.InRange(state)
	})
	if err != nil {
		s.respondError(w, fmt.Errorf("state %d: %w", state, err))
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCellAt(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	x, errX := strconv.Atoi(q.Get("x"))
	y, errY := strconv.Atoi(q.Get("y"))
	if errX != nil || errY != nil {
		s.respondError(w, fmt.Errorf("%w: x and y must be integers", errBadRequest))
		return
	}
	view, err := s.cellView(func(a *agent.Agent) (int, bool) {
		return a.StateAt(x, y)
	})
	if err != nil {
		s.respondError(w, fmt.Errorf("cell (%d,%d): %w", x, y, err))
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// cellView resolves a state under the read lock and describes it.
func (s *Server) cellView(resolve func(a *agent.Agent) (int, bool)) (CellView, error) {
	var (
		view  CellView
		found bool
	)
	s.runner.View(func(a *agent.Agent) {
		state, ok := resolve(a)
		if !ok {
			return
		}
		found = true
		x, y := a.Coordinates(state)
		view = CellView{
			State:        state,
			X:            x,
			Y:            y,
			Blocked:      a.IsBlocked(state),
			HasFood:      a.HasFood(state),
			Agent:        a.State() == state,
			Q:            make(map[string]float64, grid.Count),
			ValidActions: a.ValidActions(state),
		}
		for _, action := range grid.Actions {
			view.Q[action.String()] = a.QValue(state, action)
		}
		if best, ok := a.GreedyAction(state); ok {
			view.GreedyAction = &best
		}
	})
	if !found {
		return CellView{}, errStateNotFound
	}
	return view, nil
}

func (s *Server) handleTransitions(w http.ResponseWriter, r *http.Request) {
	limit := defaultTransitionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxTransitionLimit {
			s.respondError(w, fmt.Errorf("%w: limit must be in [1, %d]", errBadRequest, maxTransitionLimit))
			return
		}
		limit = n
	}
	transitions, err := s.runner.Transitions(r.Context(), limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":      s.runner.RunID(),
		"transitions": transitions,
	})
}

// StatsView summarises the stored transition window of the run.
type StatsView struct {
	RunID string `json:"run_id"`
	*storage.Stats
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.runner.Stats(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, StatsView{RunID: s.runner.RunID(), Stats: stats})
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	res, err := s.runner.TickOnce(r.Context())
	if err != nil && (s.runner.Err() != nil || errors.Is(err, runner.ErrStopped)) {
		s.respondError(w, err)
		return
	}
	resp := TickResponse{Tick: res}
	if err != nil {
		resp.Warning = err.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errStateNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errBadRequest):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, agent.ErrNoValidAction), errors.Is(err, runner.ErrStopped):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
