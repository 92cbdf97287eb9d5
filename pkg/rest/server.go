package rest

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/manager"

	"github.com/numtide/domain-operator/pkg/scale"
)

const (
	// ScalePath is the route of the scale endpoint.
	ScalePath = "/operator/v1/domains/{domainUID}/clusters/{cluster}/scale"

	// RequestedByHeader must be present on every mutating request.
	RequestedByHeader = "X-Requested-By"

	DefaultAddr            = ":8082"
	DefaultRequestTimeout  = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	maxBodyBytes           = 1 << 20
)

// Scaler serves scale requests. *scale.Coordinator implements it.
type Scaler interface {
	ScaleCluster(ctx context.Context, req scale.ScaleRequest) (*scale.ScaleResult, error)
}

// Options configures a Server.
type Options struct {
	// Addr is the listen address. Defaults to DefaultAddr.
	Addr string
	// RequestTimeout bounds each request, including conflict retries.
	RequestTimeout time.Duration
	// Retry is the backoff for Conflict errors. Defaults to retry.DefaultRetry.
	Retry *wait.Backoff
	// TLSConfig enables HTTPS when set.
	TLSConfig *tls.Config
}

// Server exposes a Scaler over HTTP. It runs as a manager Runnable on every
// replica, leader or not.
type Server struct {
	scaler Scaler
	opts   Options
	router chi.Router
}

var (
	_ manager.Runnable               = &Server{}
	_ manager.LeaderElectionRunnable = &Server{}
)

// NewServer creates a Server serving scaler.
func NewServer(scaler Scaler, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Retry == nil {
		backoff := retry.DefaultRetry
		opts.Retry = &backoff
	}

	s := &Server{scaler: scaler, opts: opts}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(withLogger)
	r.Use(middleware.Recoverer)

	r.Post(ScalePath, s.handleScale)
	return r
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// NeedLeaderElection implements manager.LeaderElectionRunnable.
func (s *Server) NeedLeaderElection() bool {
	return false
}

// Start listens on the configured address and serves until ctx is done, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName("rest")

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	if s.opts.TLSConfig != nil {
		ln = tls.NewListener(ln, s.opts.TLSConfig)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return log.IntoContext(context.Background(), logger) },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting REST server", "addr", ln.Addr().String(), "tls", s.opts.TLSConfig != nil)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("REST server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down REST server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down REST server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// scaleBody is the request body of the scale endpoint.
type scaleBody struct {
	ManagedServerCount *int32 `json:"managedServerCount"`
}

// scaleResponse is the body of a successful scale call.
type scaleResponse struct {
	DomainUID          string `json:"domainUID"`
	Cluster            string `json:"cluster"`
	ManagedServerCount int32  `json:"managedServerCount"`
	Updated            bool   `json:"updated"`
}

func (s *Server) handleScale(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
	defer cancel()
	logger := log.FromContext(ctx)

	token, ok := bearerToken(r)
	if !ok {
		writeError(w, apierrors.NewUnauthorized("missing bearer token"))
		return
	}
	if r.Header.Get(RequestedByHeader) == "" {
		writeError(w, apierrors.NewBadRequest(fmt.Sprintf("the %s header is required", RequestedByHeader)))
		return
	}

	var body scaleBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		writeError(w, apierrors.NewBadRequest(fmt.Sprintf("invalid request body: %v", err)))
		return
	}
	if body.ManagedServerCount == nil {
		writeError(w, apierrors.NewBadRequest("managedServerCount is required"))
		return
	}

	req := scale.ScaleRequest{
		Token:       token,
		DomainUID:   chi.URLParam(r, "domainUID"),
		ClusterName: chi.URLParam(r, "cluster"),
		Replicas:    *body.ManagedServerCount,
	}

	// Every attempt re-reads the Domain, so a retried write carries a fresh
	// resourceVersion.
	var result *scale.ScaleResult
	err := retry.RetryOnConflict(*s.opts.Retry, func() error {
		var err error
		result, err = s.scaler.ScaleCluster(ctx, req)
		return err
	})
	if err != nil {
		if !isAPIStatus(err) {
			logger.Error(err, "Scale request failed", "domainUID", req.DomainUID, "cluster", req.ClusterName)
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, scaleResponse{
		DomainUID:          result.DomainUID,
		Cluster:            result.ClusterName,
		ManagedServerCount: result.Replicas,
		Updated:            result.Updated,
	})
}

func bearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

func isAPIStatus(err error) bool {
	var status apierrors.APIStatus
	return errors.As(err, &status)
}

// writeError writes err as a metav1.Status. Errors that carry no API status
// are reported as internal errors.
func writeError(w http.ResponseWriter, err error) {
	var status apierrors.APIStatus
	if !errors.As(err, &status) {
		status = apierrors.NewInternalError(err)
	}

	st := status.Status()
	st.TypeMeta = metav1.TypeMeta{Kind: "Status", APIVersion: "v1"}
	code := int(st.Code)
	if code == 0 {
		code = http.StatusInternalServerError
		st.Code = int32(code)
	}
	writeJSON(w, code, st)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// withLogger stores a request-scoped logger in the request context.
func withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.FromContext(r.Context()).WithValues(
			"method", r.Method,
			"path", r.URL.Path,
			"requestID", middleware.GetReqID(r.Context()),
		)
		next.ServeHTTP(w, r.WithContext(log.IntoContext(r.Context(), logger)))
	})
}
