package rest

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/numtide/domain-operator/pkg/cert"
	"github.com/numtide/domain-operator/pkg/scale"
)

// fakeScaler returns queued errors, one per call, then succeeds.
type fakeScaler struct {
	mu       sync.Mutex
	errs     []error
	requests []scale.ScaleRequest
}

func (f *fakeScaler) ScaleCluster(_ context.Context, req scale.ScaleRequest) (*scale.ScaleResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return &scale.ScaleResult{
		Namespace:   "namespace1",
		Name:        "domain",
		DomainUID:   req.DomainUID,
		ClusterName: req.ClusterName,
		Replicas:    req.Replicas,
		Updated:     true,
	}, nil
}

var domainsResource = schema.GroupResource{Group: "operator.numtide.com", Resource: "domains"}

func conflict() error {
	return apierrors.NewConflict(domainsResource, "domain", errors.New("object was modified"))
}

func newTestServer(scaler Scaler) *Server {
	return NewServer(scaler, Options{
		Retry: &wait.Backoff{Steps: 3, Duration: time.Millisecond, Factor: 1},
	})
}

func TestServer_Scale(t *testing.T) {
	t.Parallel()

	const path = "/operator/v1/domains/uid1/clusters/cluster1/scale"

	tests := map[string]struct {
		method     string
		path       string
		headers    map[string]string
		body       string
		errs       []error
		wantCode   int
		wantReason metav1.StatusReason
		wantCalls  int
		wantBody   *scaleResponse
	}{
		"scales cluster": {
			body:      `{"managedServerCount": 3}`,
			wantCode:  http.StatusOK,
			wantCalls: 1,
			wantBody: &scaleResponse{
				DomainUID: "uid1", Cluster: "cluster1", ManagedServerCount: 3, Updated: true,
			},
		},
		"missing bearer token": {
			headers:    map[string]string{"Authorization": ""},
			body:       `{"managedServerCount": 3}`,
			wantCode:   http.StatusUnauthorized,
			wantReason: metav1.StatusReasonUnauthorized,
		},
		"non-bearer authorization": {
			headers:    map[string]string{"Authorization": "Basic dXNlcjpwYXNz"},
			body:       `{"managedServerCount": 3}`,
			wantCode:   http.StatusUnauthorized,
			wantReason: metav1.StatusReasonUnauthorized,
		},
		"missing requested-by header": {
			headers:    map[string]string{RequestedByHeader: ""},
			body:       `{"managedServerCount": 3}`,
			wantCode:   http.StatusBadRequest,
			wantReason: metav1.StatusReasonBadRequest,
		},
		"malformed body": {
			body:       `{"managedServerCount": `,
			wantCode:   http.StatusBadRequest,
			wantReason: metav1.StatusReasonBadRequest,
		},
		"missing count": {
			body:       `{}`,
			wantCode:   http.StatusBadRequest,
			wantReason: metav1.StatusReasonBadRequest,
		},
		"GET is not routed": {
			method:   http.MethodGet,
			wantCode: http.StatusMethodNotAllowed,
		},
		"unknown route": {
			path:     "/operator/v1/domains/uid1/scale",
			body:     `{"managedServerCount": 3}`,
			wantCode: http.StatusNotFound,
		},
		"forbidden": {
			body:       `{"managedServerCount": 3}`,
			errs:       []error{apierrors.NewForbidden(domainsResource, "", errors.New("denied"))},
			wantCode:   http.StatusForbidden,
			wantReason: metav1.StatusReasonForbidden,
			wantCalls:  1,
		},
		"domain not found": {
			body:       `{"managedServerCount": 3}`,
			errs:       []error{apierrors.NewNotFound(domainsResource, "uid1")},
			wantCode:   http.StatusNotFound,
			wantReason: metav1.StatusReasonNotFound,
			wantCalls:  1,
		},
		"topology timeout is not retried": {
			body:       `{"managedServerCount": 3}`,
			errs:       []error{apierrors.NewTimeoutError("topology", 1)},
			wantCode:   http.StatusGatewayTimeout,
			wantReason: metav1.StatusReasonTimeout,
			wantCalls:  1,
		},
		"conflict is retried": {
			body:      `{"managedServerCount": 3}`,
			errs:      []error{conflict(), conflict()},
			wantCode:  http.StatusOK,
			wantCalls: 3,
			wantBody: &scaleResponse{
				DomainUID: "uid1", Cluster: "cluster1", ManagedServerCount: 3, Updated: true,
			},
		},
		"persistent conflict": {
			body:       `{"managedServerCount": 3}`,
			errs:       []error{conflict(), conflict(), conflict(), conflict()},
			wantCode:   http.StatusConflict,
			wantReason: metav1.StatusReasonConflict,
			wantCalls:  3,
		},
		"unclassified failure": {
			body:       `{"managedServerCount": 3}`,
			errs:       []error{errors.New("connection refused")},
			wantCode:   http.StatusInternalServerError,
			wantReason: metav1.StatusReasonInternalError,
			wantCalls:  1,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			scaler := &fakeScaler{errs: tc.errs}
			srv := newTestServer(scaler)

			method := tc.method
			if method == "" {
				method = http.MethodPost
			}
			target := tc.path
			if target == "" {
				target = path
			}
			req := httptest.NewRequest(method, target, strings.NewReader(tc.body))
			req.Header.Set("Authorization", "Bearer token")
			req.Header.Set(RequestedByHeader, "test")
			req.Header.Set("Content-Type", "application/json")
			for k, v := range tc.headers {
				if v == "" {
					req.Header.Del(k)
					continue
				}
				req.Header.Set(k, v)
			}

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != tc.wantCode {
				t.Fatalf("status code = %d, want %d (body %s)", rec.Code, tc.wantCode, rec.Body.String())
			}
			if len(scaler.requests) != tc.wantCalls {
				t.Errorf("scaler calls = %d, want %d", len(scaler.requests), tc.wantCalls)
			}

			if tc.wantBody != nil {
				got := &scaleResponse{}
				if err := json.Unmarshal(rec.Body.Bytes(), got); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if diff := cmp.Diff(tc.wantBody, got); diff != "" {
					t.Errorf("response mismatch (-want +got):\n%s", diff)
				}
			}

			if tc.wantReason != "" {
				status := &metav1.Status{}
				if err := json.Unmarshal(rec.Body.Bytes(), status); err != nil {
					t.Fatalf("failed to decode status: %v", err)
				}
				if status.Reason != tc.wantReason {
					t.Errorf("status reason = %q, want %q", status.Reason, tc.wantReason)
				}
				if int(status.Code) != tc.wantCode {
					t.Errorf("status code field = %d, want %d", status.Code, tc.wantCode)
				}
				if status.Kind != "Status" {
					t.Errorf("status kind = %q, want Status", status.Kind)
				}
			}
		})
	}
}

func TestServer_PassesRequestToScaler(t *testing.T) {
	t.Parallel()

	scaler := &fakeScaler{}
	srv := newTestServer(scaler)

	req := httptest.NewRequest(http.MethodPost,
		"/operator/v1/domains/my-domain/clusters/cluster-2/scale",
		strings.NewReader(`{"managedServerCount": 0}`))
	req.Header.Set("Authorization", "Bearer  secret ")
	req.Header.Set(RequestedByHeader, "client")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	want := []scale.ScaleRequest{{
		Token:       "secret",
		DomainUID:   "my-domain",
		ClusterName: "cluster-2",
		Replicas:    0,
	}}
	if diff := cmp.Diff(want, scaler.requests); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestServer_Start(t *testing.T) {
	t.Parallel()

	srv := NewServer(&fakeScaler{}, Options{Addr: "127.0.0.1:0"})
	if srv.NeedLeaderElection() {
		t.Error("REST server must run without leader election")
	}

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start() unexpected error: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_StartListenFailure(t *testing.T) {
	t.Parallel()

	srv := NewServer(&fakeScaler{}, Options{Addr: "256.0.0.1:bad"})
	if err := srv.Start(t.Context()); err == nil {
		t.Error("Start() expected a listen error")
	}
}

func TestServer_ServesTLS(t *testing.T) {
	t.Parallel()

	ca, err := cert.NewAuthority("test CA")
	if err != nil {
		t.Fatalf("NewAuthority() unexpected error: %v", err)
	}
	pair, err := ca.Issue("127.0.0.1", []string{"127.0.0.1"})
	if err != nil {
		t.Fatalf("Issue() unexpected error: %v", err)
	}
	keyPair, err := tls.X509KeyPair(pair.CertPEM, pair.KeyPEM)
	if err != nil {
		t.Fatalf("X509KeyPair() unexpected error: %v", err)
	}

	addr := freeAddr(t)
	srv := NewServer(&fakeScaler{}, Options{
		Addr:      addr,
		TLSConfig: &tls.Config{Certificates: []tls.Certificate{keyPair}, MinVersion: tls.VersionTLS12},
	})

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	roots := x509.NewCertPool()
	roots.AddCert(ca.Cert)
	httpClient := &http.Client{
		Timeout:   time.Second,
		Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: roots, MinVersion: tls.VersionTLS12}},
	}

	url := "https://" + addr + "/operator/v1/domains/uid1/clusters/cluster1/scale"
	var resp *http.Response
	deadline := time.Now().Add(5 * time.Second)
	for {
		req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(`{"managedServerCount": 1}`))
		req.Header.Set("Authorization", "Bearer token")
		req.Header.Set(RequestedByHeader, "test")
		resp, err = httpClient.Do(req)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never answered over TLS: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status code = %d, want 200", resp.StatusCode)
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Errorf("Start() unexpected error: %v", err)
	}
}

// freeAddr returns a loopback address with a port that was free when probed.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() unexpected error: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}
