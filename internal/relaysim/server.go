// Package relaysim serves the decryption relay HTTP API on top of the
// simulation coprocessors, for local networks and tests.
package relaysim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/mrz1836/fhekit/internal/constants"
	fherrors "github.com/mrz1836/fhekit/internal/errors"
	"github.com/mrz1836/fhekit/internal/relay"
	"github.com/mrz1836/fhekit/internal/sim"
)

// maxBodySize caps request bodies.
const maxBodySize = 16 << 20

// shutdownTimeout bounds graceful shutdown in Serve.
const shutdownTimeout = 5 * time.Second

// Server routes relay requests to the coprocessor of the requested chain.
type Server struct {
	network *sim.Network
	chains  map[uint64]bool
	logger  zerolog.Logger
	router  *mux.Router
}

// New creates a Server over network. When chains is non-empty only those
// chain ids are served; others get unknown_chain.
func New(network *sim.Network, logger zerolog.Logger, chains ...uint64) *Server {
	s := &Server{
		network: network,
		chains:  make(map[uint64]bool, len(chains)),
		logger:  logger.With().Str("component", "relaysim").Logger(),
	}
	for _, id := range chains {
		s.chains[id] = true
	}

	router := mux.NewRouter()
	router.HandleFunc(constants.RelayKeysPath+"{chainId:[0-9]+}", s.handleKeys).Methods(http.MethodGet)
	router.HandleFunc(constants.RelayInputProofPath, s.handleInputProof).Methods(http.MethodPost)
	router.HandleFunc(constants.RelayUserDecryptPath, s.handleUserDecrypt).Methods(http.MethodPost)
	router.HandleFunc(constants.RelayPublicDecryptPath, s.handlePublicDecrypt).Methods(http.MethodPost)
	router.HandleFunc(constants.RelaySimPublicPath, s.handleMarkPublic).Methods(http.MethodPost)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, relay.ErrorResponse{Error: "no such route", Code: relay.CodeBadRequest})
	})
	router.Use(s.requestIDMiddleware)
	s.router = router
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
// ready, when non-nil, receives the bound address once listening.
func (s *Server) Serve(ctx context.Context, addr string, ready chan<- string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("relay simulator listening")
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down relay simulator: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) coprocessor(ctx context.Context, chainID uint64) (*sim.Coprocessor, error) {
	if len(s.chains) > 0 && !s.chains[chainID] {
		return nil, fmt.Errorf("%w: %d", fherrors.ErrUnknownChain, chainID)
	}
	return s.network.Coprocessor(ctx, chainID)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(constants.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(constants.RequestIDHeader, id)
		logger := s.logger.With().Str("request_id", id).Str("path", r.URL.Path).Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
	})
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	chainID, err := strconv.ParseUint(mux.Vars(r)["chainId"], 10, 64)
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: chain id", fherrors.ErrInvalidArgument))
		return
	}
	c, err := s.coprocessor(r.Context(), chainID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp, err := c.Keys(r.Context(), chainID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInputProof(w http.ResponseWriter, r *http.Request) {
	var req relay.InputProofRequest
	if !s.decode(w, r, &req) {
		return
	}
	c, err := s.coprocessor(r.Context(), req.ChainID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp, err := c.InputProof(r.Context(), &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUserDecrypt(w http.ResponseWriter, r *http.Request) {
	var req relay.UserDecryptRequest
	if !s.decode(w, r, &req) {
		return
	}
	c, err := s.coprocessor(r.Context(), req.ChainID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp, err := c.UserDecrypt(r.Context(), &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePublicDecrypt(w http.ResponseWriter, r *http.Request) {
	var req relay.PublicDecryptRequest
	if !s.decode(w, r, &req) {
		return
	}
	c, err := s.coprocessor(r.Context(), req.ChainID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp, err := c.PublicDecrypt(r.Context(), &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMarkPublic(w http.ResponseWriter, r *http.Request) {
	var req relay.MarkPublicRequest
	if !s.decode(w, r, &req) {
		return
	}
	c, err := s.coprocessor(r.Context(), req.ChainID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := c.MarkPublic(r.Context(), req.Handles); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"marked": len(req.Handles)})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err == nil {
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: %w", fherrors.ErrInvalidArgument, err))
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := relay.Classify(err)
	log := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("relay request failed")
	} else {
		log.Debug().Err(err).Str("code", code).Msg("relay request refused")
	}
	writeJSON(w, status, relay.ErrorResponse{Error: err.Error(), Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
