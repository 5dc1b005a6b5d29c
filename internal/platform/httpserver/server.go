package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	pollregistry "ballotbox/contexts/governance/poll-registry"
	authadapter "ballotbox/contexts/governance/poll-registry/adapters/auth"
	websocketadapter "ballotbox/contexts/governance/poll-registry/adapters/websocket"
	"ballotbox/contexts/governance/poll-registry/application/workers"
	"ballotbox/contexts/governance/poll-registry/domain/entities"
	pollerrors "ballotbox/contexts/governance/poll-registry/domain/errors"
	pollhttp "ballotbox/contexts/governance/poll-registry/transport/http"
	_ "ballotbox/internal/platform/httpserver/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

const maxBodyBytes = 1 << 20

type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
	addr   string
	polls  pollregistry.Module
	hub    *websocketadapter.Hub
}

// New builds the API server. hub may be nil, which disables the live feed.
func New(
	polls pollregistry.Module,
	hub *websocketadapter.Hub,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		addr:   addr,
		polls:  polls,
		hub:    hub,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /v1/polls", s.handleCreatePoll)
	s.mux.HandleFunc("GET /v1/polls/{poll_id}", s.handleGetPoll)
	s.mux.HandleFunc("GET /v1/polls/{poll_id}/results", s.handleGetResult)
	s.mux.HandleFunc("POST /v1/polls/{poll_id}/votes", s.handleCastVote)
	s.mux.HandleFunc("POST /v1/polls/{poll_id}/close", s.handleClosePoll)
	s.mux.HandleFunc("GET /v1/polls/{poll_id}/voters/{voter}", s.handleVoterStatus)
	if s.hub != nil {
		s.mux.HandleFunc("GET /v1/polls/{poll_id}/live", s.handleLiveFeed)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreatePoll(w http.ResponseWriter, r *http.Request) {
	ctx, callerID, body, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var req pollhttp.CreatePollRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writePollError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.polls.Handler.CreatePollHandler(ctx, callerID, req)
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	ctx, callerID, body, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var req pollhttp.CastVoteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writePollError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.polls.Handler.CastVoteHandler(ctx, callerID, r.PathValue("poll_id"), req)
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClosePoll(w http.ResponseWriter, r *http.Request) {
	ctx, callerID, body, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var req pollhttp.ClosePollRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writePollError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
			return
		}
	}
	resp, err := s.polls.Handler.ClosePollHandler(ctx, callerID, r.PathValue("poll_id"), req)
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPoll(w http.ResponseWriter, r *http.Request) {
	resp, err := s.polls.Handler.PollHandler(r.Context(), r.PathValue("poll_id"))
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	resp, err := s.polls.Handler.ResultHandler(r.Context(), r.PathValue("poll_id"))
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVoterStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.polls.Handler.VoterStatusHandler(r.Context(), r.PathValue("poll_id"), r.PathValue("voter"))
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleLiveFeed checks the poll exists before upgrading so unknown polls get
// a plain JSON 404 instead of an empty stream. The snapshot itself is read
// again once the client is registered with the hub.
func (s *Server) handleLiveFeed(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("poll_id")
	if _, err := s.polls.Results.GetResult(r.Context(), pollID); err != nil {
		writePollDomainError(w, err)
		return
	}
	s.hub.ServeLive(w, r, pollID, func() ([]byte, error) {
		result, err := s.polls.Results.GetResult(r.Context(), pollID)
		if err != nil {
			return nil, err
		}
		return workers.EncodeLiveTally(result)
	})
}

// authenticate reads the body once, attaches the caller's credentials to the
// request context and returns the body for decoding. The signature, when
// present, covers method, path and body.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (context.Context, string, []byte, bool) {
	identity := strings.TrimSpace(r.Header.Get(authadapter.HeaderIdentity))
	if identity == "" {
		writePollError(w, http.StatusUnauthorized, "missing_identity", authadapter.HeaderIdentity+" header is required")
		return nil, "", nil, false
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writePollError(w, http.StatusBadRequest, "invalid_body", "request body could not be read")
		return nil, "", nil, false
	}

	creds := authadapter.Credentials{
		Identity: entities.Identity(identity),
		Message:  authadapter.CanonicalRequest(r.Method, r.URL.Path, body),
	}
	if raw := r.Header.Get(authadapter.HeaderSignature); raw != "" {
		signature, err := authadapter.DecodeSignature(raw)
		if err != nil {
			writePollError(w, http.StatusUnauthorized, "invalid_signature", authadapter.HeaderSignature+" must be base64")
			return nil, "", nil, false
		}
		creds.Signature = signature
	}
	return authadapter.WithCredentials(r.Context(), creds), identity, body, true
}

func writePollDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pollerrors.ErrPollNotFound):
		writePollError(w, http.StatusNotFound, "poll_not_found", err.Error())
	case errors.Is(err, pollerrors.ErrAlreadyExists):
		writePollError(w, http.StatusConflict, "poll_already_exists", err.Error())
	case errors.Is(err, pollerrors.ErrPollClosed):
		writePollError(w, http.StatusConflict, "poll_closed", err.Error())
	case errors.Is(err, pollerrors.ErrAlreadyVoted):
		writePollError(w, http.StatusConflict, "already_voted", err.Error())
	case errors.Is(err, pollerrors.ErrInvalidChoice):
		writePollError(w, http.StatusUnprocessableEntity, "invalid_choice", err.Error())
	case errors.Is(err, pollerrors.ErrNotCreator):
		writePollError(w, http.StatusForbidden, "not_creator", err.Error())
	case errors.Is(err, pollerrors.ErrUnauthorized):
		writePollError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, pollerrors.ErrInvalidPollID),
		errors.Is(err, pollerrors.ErrInvalidIdentity):
		writePollError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, pollerrors.ErrTallyOverflow):
		writePollError(w, http.StatusConflict, "tally_overflow", err.Error())
	case errors.Is(err, pollerrors.ErrConflict):
		writePollError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writePollError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writePollError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, pollhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
