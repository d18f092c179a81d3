package lib

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/TecharoHQ/glimpse"
	"github.com/TecharoHQ/glimpse/internal"
	"github.com/TecharoHQ/glimpse/lib/challenge"
	"github.com/TecharoHQ/glimpse/lib/throttle"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Nonces are 16 random bytes in unpadded URL-safe base64 and digests are
// hex SHA-256, so both have a fixed length. The grid is at most 8x8.
type flashLagSubmission struct {
	Nonce       string `json:"nonce" validate:"required,len=22"`
	ChosenIndex *int   `json:"chosen_index" validate:"required,gte=0,lt=64"`
	TS          int64  `json:"ts" validate:"required,gt=0"`
	Digest      string `json:"digest" validate:"required,len=64,hexadecimal"`
}

type illusionSubmission struct {
	Nonce  string `json:"nonce" validate:"required,len=22"`
	Shape  string `json:"shape" validate:"required,max=64"`
	TS     int64  `json:"ts" validate:"required,gt=0"`
	Digest string `json:"digest" validate:"required,len=64,hexadecimal"`
}

type drawingSubmission struct {
	Nonce  string `validate:"required,len=22"`
	TS     int64  `validate:"required,gt=0"`
	Digest string `validate:"required,len=64,hexadecimal"`
	Image  []byte `validate:"required"`
}

type verifyTokenRequest struct {
	Token string `json:"token" validate:"required,jwt"`
}

// Server exposes an Engine over HTTP.
type Server struct {
	engine *Engine
	mux    *http.ServeMux
}

// NewServer routes the challenge API under glimpse.BasePrefix.
func NewServer(e *Engine) *Server {
	s := &Server{
		engine: e,
		mux:    http.NewServeMux(),
	}

	prefix := strings.TrimSuffix(glimpse.BasePrefix, "/") + glimpse.APIPrefix

	s.mux.HandleFunc("POST "+prefix+"challenge/{kind}", s.IssueChallenge)
	s.mux.HandleFunc("POST "+prefix+"validate/flashlag", s.ValidateFlashLag)
	s.mux.HandleFunc("POST "+prefix+"validate/illusion", s.ValidateIllusion)
	s.mux.HandleFunc("POST "+prefix+"validate/drawing", s.ValidateDrawing)
	s.mux.HandleFunc("GET "+prefix+"stats", s.Stats)
	s.mux.HandleFunc("POST "+prefix+"verify-token", s.VerifyToken)
	s.mux.Handle("GET "+prefix+"admin/lockout/{client}", s.adminOnly(http.HandlerFunc(s.LockoutStatus)))
	s.mux.Handle("DELETE "+prefix+"admin/lockout/{client}", s.adminOnly(http.HandlerFunc(s.ClearLockout)))
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	internal.NoStoreCache(s.mux).ServeHTTP(w, r)
}

// clientFor identifies the caller by its best known network address.
func clientFor(r *http.Request) Client {
	addr := internal.ClientAddr(r)

	id := "unknown"
	if addr.IsValid() {
		id = addr.String()
	}

	return Client{Identity: id, Addr: addr}
}

func writeJSON(lg *slog.Logger, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		lg.Error("failed to encode response", "err", err)
	}
}

func (s *Server) respondWithStatus(lg *slog.Logger, w http.ResponseWriter, msg string, status int) {
	writeJSON(lg, w, status, struct {
		Error string `json:"error"`
	}{
		Error: msg,
	})
}

// respondWithError maps engine errors to HTTP statuses. Private details stay
// in the log.
func (s *Server) respondWithError(lg *slog.Logger, w http.ResponseWriter, err error) {
	var terr *throttle.Error
	if errors.As(err, &terr) {
		status := http.StatusTooManyRequests
		if errors.Is(err, throttle.ErrBlocked) {
			status = http.StatusForbidden
		}
		if terr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(terr.RetryAfter.Seconds()+0.5)))
		}
		s.respondWithStatus(lg, w, terr.Err.Error(), status)
		return
	}

	var cerr *challenge.Error
	if errors.As(err, &cerr) {
		if cerr.StatusCode >= http.StatusInternalServerError {
			lg.Error("challenge error", "err", err)
		} else {
			lg.Debug("challenge error", "err", err)
		}
		s.respondWithStatus(lg, w, cerr.PublicReason, cerr.StatusCode)
		return
	}

	lg.Error("internal error", "err", err)
	s.respondWithStatus(lg, w, "internal server error", http.StatusInternalServerError)
}

func (s *Server) IssueChallenge(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	issued, err := s.engine.Issue(r.Context(), lg, challenge.Kind(r.PathValue("kind")), clientFor(r))
	if err != nil {
		s.respondWithError(lg, w, err)
		return
	}

	writeJSON(lg, w, http.StatusOK, issued)
}

// decodeJSON reads a bounded JSON body into dst and checks its struct tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", challenge.ErrMalformed, err)
	}

	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %w", challenge.ErrMalformed, err)
	}

	return nil
}

func (s *Server) finishValidation(lg *slog.Logger, w http.ResponseWriter, r *http.Request, kind challenge.Kind, sub *challenge.Submission) {
	result, err := s.engine.Validate(r.Context(), lg, kind, clientFor(r), sub)
	if err != nil {
		s.respondWithError(lg, w, challenge.NewError("validate", "can't validate submission", fmt.Errorf("%w: %w", challenge.ErrProcessingFailure, err)))
		return
	}

	writeJSON(lg, w, http.StatusOK, result)
}

func (s *Server) ValidateFlashLag(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	var req flashLagSubmission
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondWithError(lg, w, challenge.NewError("validate", "malformed submission", err))
		return
	}

	if cells := s.engine.Config().FlashLag.Cells(); *req.ChosenIndex >= cells {
		err := fmt.Errorf("%w: chosen_index %d is outside a grid of %d cells", challenge.ErrMalformed, *req.ChosenIndex, cells)
		s.respondWithError(lg, w, challenge.NewError("validate", "malformed submission", err))
		return
	}

	s.finishValidation(lg, w, r, challenge.KindFlashLag, &challenge.Submission{
		Nonce:           req.Nonce,
		Answer:          strconv.Itoa(*req.ChosenIndex),
		ClientTimestamp: req.TS,
		Digest:          req.Digest,
	})
}

func (s *Server) ValidateIllusion(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	var req illusionSubmission
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondWithError(lg, w, challenge.NewError("validate", "malformed submission", err))
		return
	}

	s.finishValidation(lg, w, r, challenge.KindIllusion, &challenge.Submission{
		Nonce:           req.Nonce,
		Answer:          req.Shape,
		ClientTimestamp: req.TS,
		Digest:          req.Digest,
	})
}

func (s *Server) readDrawing(w http.ResponseWriter, r *http.Request) (*drawingSubmission, error) {
	limit := s.engine.Config().Drawing.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+(64<<10))

	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, fmt.Errorf("%w: %w", challenge.ErrMalformed, err)
	}

	fin, hdr, err := r.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("%w: image: %w", challenge.ErrMalformed, err)
	}
	defer fin.Close()

	if hdr.Size > limit {
		return nil, fmt.Errorf("%w: image is %d bytes, limit is %d", challenge.ErrMalformed, hdr.Size, limit)
	}

	img, err := io.ReadAll(io.LimitReader(fin, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: image: %w", challenge.ErrMalformed, err)
	}

	ts, err := strconv.ParseInt(r.FormValue("ts"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: ts: %w", challenge.ErrMalformed, err)
	}

	result := &drawingSubmission{
		Nonce:  r.FormValue("nonce"),
		TS:     ts,
		Digest: r.FormValue("digest"),
		Image:  img,
	}

	if err := validate.Struct(result); err != nil {
		return nil, fmt.Errorf("%w: %w", challenge.ErrMalformed, err)
	}

	return result, nil
}

func (s *Server) ValidateDrawing(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	if s.engine.Config().Drawing.Disabled {
		s.respondWithError(lg, w, challenge.NewError("validate", "challenge kind is not available", challenge.ErrKindDisabled))
		return
	}

	req, err := s.readDrawing(w, r)
	if err != nil {
		s.respondWithError(lg, w, challenge.NewError("validate", "malformed submission", err))
		return
	}

	s.finishValidation(lg, w, r, challenge.KindDrawing, &challenge.Submission{
		Nonce:           req.Nonce,
		Image:           req.Image,
		ClientTimestamp: req.TS,
		Digest:          req.Digest,
	})
}

func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(internal.GetRequestLogger(r), w, http.StatusOK, s.engine.Stats())
}

func (s *Server) VerifyToken(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	var req verifyTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondWithError(lg, w, challenge.NewError("verify-token", "malformed request", err))
		return
	}

	claims, err := s.engine.VerifyToken(req.Token)
	if err != nil {
		lg.Debug("token rejected", "err", err)
		s.respondWithStatus(lg, w, "invalid token", http.StatusUnauthorized)
		return
	}

	writeJSON(lg, w, http.StatusOK, claims)
}

// AdminTokenHeader carries the admin token.
const AdminTokenHeader = "X-Admin-Token"

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lg := internal.GetRequestLogger(r)

		if s.engine.adminToken == "" {
			s.respondWithStatus(lg, w, "admin API not enabled", http.StatusForbidden)
			return
		}

		got := r.Header.Get(AdminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.engine.adminToken)) != 1 {
			lg.Info("admin request with bad token")
			s.respondWithStatus(lg, w, "unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) LockoutStatus(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	status, err := s.engine.ClientStatus(r.Context(), r.PathValue("client"))
	if err != nil {
		s.respondWithError(lg, w, err)
		return
	}

	writeJSON(lg, w, http.StatusOK, status)
}

func (s *Server) ClearLockout(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	if err := s.engine.ClearLockout(r.Context(), lg, r.PathValue("client")); err != nil {
		s.respondWithError(lg, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
