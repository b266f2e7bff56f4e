package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"susu_keeper/internal/app"
	"susu_keeper/internal/domain/group"
	"susu_keeper/internal/domain/payout"
)

// Server exposes the payout checker to the automation network.
type Server struct {
	checker *app.PayoutChecker
	groups  group.Source
	logger  *logrus.Entry

	server *http.Server
}

type groupResult struct {
	Group  string             `json:"group"`
	Name   string             `json:"name,omitempty"`
	Result payout.CheckResult `json:"result"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewServer(checker *app.PayoutChecker, groups group.Source, addr string, logger *logrus.Entry) *Server {
	s := &Server{
		checker: checker,
		groups:  groups,
		logger:  logger.WithField("component", "httpapi"),
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Resolver
	mux.HandleFunc("GET /resolver/{group}", s.handleResolve)
	mux.HandleFunc("GET /resolver", s.handleResolveAll)

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return s.withRequestID(mux)
}

// Start blocks until the server stops. http.ErrServerClosed is not an error.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.server.Addr).Info("Starting resolver HTTP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleResolve answers 200 with a CheckResult for every valid address, even when the chain read failed.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, s.logger)
	raw := r.PathValue("group")

	result, err := s.checker.Check(r.Context(), raw)
	if err != nil {
		if errors.Is(err, payout.ErrInvalidInput) {
			log.WithField("group", raw).Warn("Rejected resolver call with invalid group address")
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid group address"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	log.WithFields(logrus.Fields{"group": raw, "can_exec": result.CanExec}).Debug("Resolver call served")
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleResolveAll(w http.ResponseWriter, r *http.Request) {
	groups, err := s.groups.ListGroups(r.Context())
	if err != nil {
		requestLogger(r, s.logger).WithError(err).Error("Failed to list groups")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not list groups"})
		return
	}

	addresses := make([]string, len(groups))
	for i, g := range groups {
		addresses[i] = g.Address.Hex()
	}
	checks := s.checker.CheckMany(r.Context(), addresses)

	out := make([]groupResult, len(checks))
	for i, c := range checks {
		out[i] = groupResult{Group: c.Group, Name: groups[i].Name, Result: c.Result}
	}
	writeJSON(w, http.StatusOK, out)
}

type requestIDKey struct{}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestLogger(r *http.Request, base *logrus.Entry) *logrus.Entry {
	if id, ok := r.Context().Value(requestIDKey{}).(string); ok {
		return base.WithField("request_id", id)
	}
	return base
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
