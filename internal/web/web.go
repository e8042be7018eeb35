package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"bmo/internal/bmo"
	"bmo/internal/config"
	"bmo/internal/display"
	"bmo/internal/face"
	appLog "bmo/internal/log"
)

// Device is the part of bmo.Device exposed over HTTP.
type Device interface {
	Snapshot() bmo.Snapshot
	DrawFace(expr face.Expression, eyes face.EyeState) error
	ChangeExpression(to face.Expression) error
	NextMood() (face.Expression, error)
	SetBacklight(level uint8)
	Sleep() error
	Wakeup() error
	ResetDisplay() error
	Blink() error
	WritePreview(w io.Writer) error
}

var _ Device = (*bmo.Device)(nil)

// Server provides the HTTP control API for the face and the display.
type Server struct {
	cfg *config.Config
	dev Device
	mux *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, dev Device) *Server {
	s := &Server{
		cfg: cfg,
		dev: dev,
		mux: http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials count as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="BMO", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve runs the API on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, cfg *config.Config, dev Device) error {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           NewServer(cfg, dev).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("POST /api/face", s.handleFace)
	s.mux.HandleFunc("POST /api/mood", s.handleMood)
	s.mux.HandleFunc("POST /api/backlight", s.handleBacklight)
	s.mux.HandleFunc("POST /api/sleep", s.action(s.dev.Sleep))
	s.mux.HandleFunc("POST /api/wakeup", s.action(s.dev.Wakeup))
	s.mux.HandleFunc("POST /api/reset", s.action(s.dev.ResetDisplay))
	s.mux.HandleFunc("POST /api/blink", s.action(s.dev.Blink))
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dev.Snapshot())
}

// faceRequest is the JSON body for POST /api/face. Empty fields keep the
// current value; Animate fades the mouth instead of redrawing everything
// when only the expression changes.
type faceRequest struct {
	Expression string `json:"expression"`
	Eyes       string `json:"eyes"`
	Animate    bool   `json:"animate"`
}

func (s *Server) handleFace(w http.ResponseWriter, r *http.Request) {
	var req faceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cur := s.dev.Snapshot()
	expr, eyes := cur.Expression, cur.Eyes
	var err error
	if req.Expression != "" {
		if expr, err = face.ParseExpression(req.Expression); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Eyes != "" {
		if eyes, err = face.ParseEyeState(req.Eyes); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	appLog.Info("api face request", "expression", expr.String(), "eyes", eyes.String(), "animate", req.Animate)
	if req.Animate && eyes == cur.Eyes {
		err = s.dev.ChangeExpression(expr)
	} else {
		err = s.dev.DrawFace(expr, eyes)
	}
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.dev.Snapshot())
}

func (s *Server) handleMood(w http.ResponseWriter, _ *http.Request) {
	if _, err := s.dev.NextMood(); err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.dev.Snapshot())
}

type backlightRequest struct {
	Level *int `json:"level"`
}

func (s *Server) handleBacklight(w http.ResponseWriter, r *http.Request) {
	var req backlightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Level == nil || *req.Level < 0 || *req.Level > 255 {
		writeError(w, http.StatusBadRequest, "level must be 0..255")
		return
	}
	s.dev.SetBacklight(uint8(*req.Level))
	writeJSON(w, http.StatusOK, s.dev.Snapshot())
}

// action adapts a device operation into a handler that answers with the
// resulting status.
func (s *Server) action(op func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := op(); err != nil {
			writeDeviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.dev.Snapshot())
	}
}

// handlePreview renders the framebuffer as PNG. Hardware panels cannot be
// read back, so they answer 404.
func (s *Server) handlePreview(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := s.dev.WritePreview(&buf); err != nil {
		if errors.Is(err, bmo.ErrNoPreview) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		appLog.Error("preview encode failed", err)
		writeError(w, http.StatusInternalServerError, "failed to render preview")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// writeDeviceError maps device errors to HTTP statuses: lifecycle conflicts
// are 409, display faults 503.
func writeDeviceError(w http.ResponseWriter, err error) {
	var derr *display.Error
	switch {
	case errors.Is(err, bmo.ErrNotReady), errors.Is(err, bmo.ErrAsleep):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &derr):
		appLog.Error("display operation failed", err, "status", derr.Status.String())
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		appLog.Error("device operation failed", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
