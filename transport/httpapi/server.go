package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/MrEthical07/goVerify/biometric"
	"github.com/MrEthical07/goVerify/metrics/export/prometheus"
	"github.com/MrEthical07/goVerify/middleware"
	"github.com/MrEthical07/goVerify/otp"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Server routes HTTP requests to an engine.
type Server struct {
	engine  *goVerify.Engine
	cfg     Config
	logger  *slog.Logger
	clients *clientLimiter
	router  *mux.Router
}

// NewServer validates cfg and builds the router. A nil logger discards.
func NewServer(engine *goVerify.Engine, cfg Config, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("httpapi: engine is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.QRSize <= 0 {
		cfg.QRSize = 256
	}

	s := &Server{
		engine:  engine,
		cfg:     cfg,
		logger:  logger,
		clients: newClientLimiter(cfg.ClientRate, cfg.ClientBurst, cfg.ClientIdle),
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestID, s.limitClients)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", prometheus.NewPrometheusExporter(s.engine).Handler()).Methods(http.MethodGet)
	r.HandleFunc("/v1/authenticate", s.handleAuthenticate).Methods(http.MethodPost)

	admin := r.PathPrefix("/v1").Subrouter()
	if !s.cfg.OpenEnrollment {
		admin.Use(middleware.RequireGrant(s.engine, s.cfg.AdminIdentities...))
	}
	admin.HandleFunc("/enroll/credential", s.handleEnrollCredential).Methods(http.MethodPost)
	admin.HandleFunc("/enroll/template", s.handleEnrollTemplate).Methods(http.MethodPost)
	admin.HandleFunc("/enroll/hours", s.handleEnrollHours).Methods(http.MethodPost)
	admin.HandleFunc("/enroll/keylayers", s.handleProvisionKeyLayers).Methods(http.MethodPost)
	admin.HandleFunc("/enroll/derived", s.handleProvisionDerived).Methods(http.MethodPost)
	admin.HandleFunc("/enroll/backup", s.handleBackupCodes).Methods(http.MethodPost)
	admin.HandleFunc("/report", s.handleReport).Methods(http.MethodGet)
	admin.HandleFunc("/security", s.handleSecurityReport).Methods(http.MethodGet)
	return r
}

/*
====================================
MIDDLEWARE
====================================
*/

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limitClients(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" && !s.clients.allow(s.clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) clientIP(r *http.Request) string {
	if s.cfg.TrustForwardedFor {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) requestContext(r *http.Request) context.Context {
	ctx := goVerify.WithClientIP(r.Context(), s.clientIP(r))
	return goVerify.WithUserAgent(ctx, r.UserAgent())
}

/*
====================================
PIPELINE
====================================
*/

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": s.engine.Report().Status})
}

func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req goVerify.AuthRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.engine.Authenticate(s.requestContext(r), req)
	switch {
	case err == nil:
	case errors.Is(err, goVerify.ErrEmptyIdentity):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, goVerify.ErrEngineClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case errors.Is(err, goVerify.ErrAttemptAbandoned):
		s.logger.Info("attempt abandoned", "identity", req.Identity, "error", err)
		writeError(w, http.StatusRequestTimeout, "attempt abandoned")
		return
	case errors.Is(err, goVerify.ErrConfigurationFault):
		s.logger.Error("pipeline fault", "identity", req.Identity, "attempt_id", res.AttemptID, "stage", res.FailureStage.String(), "error", err)
		writeJSON(w, http.StatusInternalServerError, res)
		return
	default:
		s.logger.Error("authenticate failed", "identity", req.Identity, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := http.StatusOK
	if !res.Authenticated {
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, res)
}

/*
====================================
ENROLLMENT
====================================
*/

type identityBody struct {
	Identity string `json:"identity"`
}

func (s *Server) handleEnrollCredential(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identity string `json:"identity"`
		Secret   string `json:"secret"`
		Digest   string `json:"digest"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	var err error
	if body.Digest != "" {
		err = s.engine.RegisterCredentialDigest(r.Context(), body.Identity, body.Digest)
	} else {
		err = s.engine.RegisterCredential(r.Context(), body.Identity, body.Secret)
	}
	s.writeEnrollment(w, err, nil)
}

func (s *Server) handleEnrollTemplate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identity string             `json:"identity"`
		Modality biometric.Modality `json:"modality"`
		Vector   []float64          `json:"vector"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	s.writeEnrollment(w, s.engine.EnrollTemplate(r.Context(), body.Identity, body.Modality, body.Vector), nil)
}

func (s *Server) handleEnrollHours(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identity string `json:"identity"`
		Hours    []int  `json:"hours"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	s.writeEnrollment(w, s.engine.EnrollActiveHours(r.Context(), body.Identity, body.Hours), nil)
}

func (s *Server) handleProvisionKeyLayers(w http.ResponseWriter, r *http.Request) {
	var body identityBody
	if !s.decode(w, r, &body) {
		return
	}
	rotations, err := s.engine.ProvisionKeyLayers(r.Context(), body.Identity)
	type rotation struct {
		Kind  string `json:"kind"`
		DueAt string `json:"due_at"`
	}
	out := make([]rotation, 0, len(rotations))
	for _, rot := range rotations {
		out = append(out, rotation{Kind: rot.Kind.String(), DueAt: rot.DueAt.UTC().Format(time.RFC3339)})
	}
	s.writeEnrollment(w, err, map[string]any{"rotations": out})
}

func (s *Server) handleProvisionDerived(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identity string `json:"identity"`
		Account  string `json:"account"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	prov, err := s.engine.ProvisionDerivedCode(r.Context(), body.Identity, body.Account)
	if err != nil {
		s.writeEnrollment(w, err, nil)
		return
	}
	png, err := otp.QRCode(prov.URI, s.cfg.QRSize)
	if err != nil {
		s.logger.Error("qr render failed", "identity", body.Identity, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeEnrollment(w, nil, map[string]any{
		"secret": prov.Secret,
		"uri":    prov.URI,
		"qr":     "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	})
}

func (s *Server) handleBackupCodes(w http.ResponseWriter, r *http.Request) {
	var body identityBody
	if !s.decode(w, r, &body) {
		return
	}
	codes, err := s.engine.GenerateBackupCodes(r.Context(), body.Identity)
	s.writeEnrollment(w, err, map[string]any{"codes": codes})
}

func (s *Server) writeEnrollment(w http.ResponseWriter, err error, payload map[string]any) {
	switch {
	case err == nil:
		if payload == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case errors.Is(err, goVerify.ErrEngineClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, goVerify.ErrEnrollmentUnavailable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusRequestTimeout, "request cancelled")
	default:
		// enrollment errors are input validation failures
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

/*
====================================
REPORTS
====================================
*/

func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Report())
}

func (s *Server) handleSecurityReport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.SecurityReport())
}

/*
====================================
HELPERS
====================================
*/

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
