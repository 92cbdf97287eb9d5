package cert

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/manager"

	"github.com/numtide/domain-operator/pkg/util/metadata"
)

const (
	// CACertKey and CAKeyKey hold the CA next to the server pair in the Secret.
	CACertKey = "ca.crt"
	CAKeyKey  = "ca.key"

	// RotationThreshold is the remaining validity below which a certificate
	// is replaced (30 days).
	RotationThreshold = 30 * 24 * time.Hour

	defaultRotationInterval = time.Hour
)

// ErrNoCertificate is returned by GetCertificate before the first successful
// Bootstrap.
var ErrNoCertificate = errors.New("no serving certificate loaded")

// Options configures a Rotator.
type Options struct {
	// Namespace and SecretName locate the Secret holding the PKI.
	Namespace  string
	SecretName string
	// ServiceName produces the <svc>.<ns>.svc DNS names of the certificate.
	ServiceName string
	// AdditionalHosts are extra DNS names or IP addresses to certify.
	AdditionalHosts []string
	// RotationInterval is how often Start re-checks the certificate.
	// Defaults to one hour.
	RotationInterval time.Duration
}

// Rotator keeps a self-signed serving certificate in a Secret and serves the
// current pair from memory, so rotated certificates are picked up without a
// restart.
type Rotator struct {
	client   client.Client
	recorder record.EventRecorder
	opts     Options

	mu       sync.RWMutex
	current  *tls.Certificate
	caBundle []byte
}

var (
	_ manager.Runnable               = &Rotator{}
	_ manager.LeaderElectionRunnable = &Rotator{}
)

// NewRotator creates a Rotator. recorder may be nil.
func NewRotator(c client.Client, recorder record.EventRecorder, opts Options) *Rotator {
	if opts.RotationInterval <= 0 {
		opts.RotationInterval = defaultRotationInterval
	}
	return &Rotator{client: c, recorder: recorder, opts: opts}
}

// Hosts returns the names the serving certificate is issued for.
func (r *Rotator) Hosts() []string {
	hosts := []string{
		fmt.Sprintf("%s.%s.svc", r.opts.ServiceName, r.opts.Namespace),
		fmt.Sprintf("%s.%s.svc.cluster.local", r.opts.ServiceName, r.opts.Namespace),
	}
	return append(hosts, r.opts.AdditionalHosts...)
}

// Bootstrap ensures the Secret holds a valid pair and loads it.
func (r *Rotator) Bootstrap(ctx context.Context) error {
	log.FromContext(ctx).Info("Bootstrapping serving certificate", "secret", r.opts.SecretName)
	return r.reconcile(ctx)
}

// Start re-checks the certificate every RotationInterval until ctx is done.
func (r *Rotator) Start(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName("cert-rotation")

	ticker := time.NewTicker(r.opts.RotationInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := r.reconcile(ctx); err != nil {
				logger.Error(err, "Periodic certificate reconciliation failed")
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// NeedLeaderElection implements manager.LeaderElectionRunnable. Every replica
// serves TLS, so every replica keeps its certificate current.
func (r *Rotator) NeedLeaderElection() bool {
	return false
}

// GetCertificate is suitable for tls.Config.GetCertificate.
func (r *Rotator) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return nil, ErrNoCertificate
	}
	return r.current, nil
}

// CABundle returns the PEM CA that signed the current certificate.
func (r *Rotator) CABundle() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.caBundle)
}

func (r *Rotator) reconcile(ctx context.Context) error {
	logger := log.FromContext(ctx)
	key := types.NamespacedName{Namespace: r.opts.Namespace, Name: r.opts.SecretName}

	secret := &corev1.Secret{}
	if err := r.client.Get(ctx, key, secret); err != nil {
		if !apierrors.IsNotFound(err) {
			return fmt.Errorf("failed to get certificate secret: %w", err)
		}
		secret = &corev1.Secret{
			ObjectMeta: metav1.ObjectMeta{
				Name:      key.Name,
				Namespace: key.Namespace,
				Labels:    r.labels(nil),
			},
			Type: corev1.SecretTypeTLS,
		}
		if err := r.regenerate(secret, true); err != nil {
			return err
		}
		if err := r.client.Create(ctx, secret); err != nil {
			if apierrors.IsAlreadyExists(err) {
				// Another replica won the race; adopt its PKI.
				return r.reconcile(ctx)
			}
			return fmt.Errorf("failed to create certificate secret: %w", err)
		}
		r.event(secret, "Generated", "Generated new serving certificate")
		return r.load(secret)
	}

	reason, rotateCA := r.needsRotation(secret)
	if reason == "" {
		return r.load(secret)
	}

	logger.Info("Rotating serving certificate", "reason", reason, "rotateCA", rotateCA)
	if err := r.regenerate(secret, rotateCA); err != nil {
		return err
	}
	secret.Labels = r.labels(secret.Labels)
	if err := r.client.Update(ctx, secret); err != nil {
		return fmt.Errorf("failed to update certificate secret: %w", err)
	}
	r.event(secret, "Rotated", "Rotated serving certificate: "+reason)
	return r.load(secret)
}

func (r *Rotator) labels(existing map[string]string) map[string]string {
	return metadata.MergeLabels(
		metadata.BuildStandardLabels(r.opts.ServiceName, metadata.ComponentServingCert),
		existing,
	)
}

// needsRotation reports why the stored PKI must be replaced, or "" when it is
// valid. rotateCA is true when the CA itself is unusable.
func (r *Rotator) needsRotation(secret *corev1.Secret) (reason string, rotateCA bool) {
	ca, err := ParseAuthority(secret.Data[CACertKey], secret.Data[CAKeyKey])
	if err != nil {
		return "CA is corrupt", true
	}
	if time.Until(ca.Cert.NotAfter) < RotationThreshold {
		return "CA is near expiry", true
	}

	leaf, err := ParseLeaf(secret.Data[corev1.TLSCertKey])
	if err != nil {
		return "server certificate is corrupt", false
	}
	if _, err := tls.X509KeyPair(secret.Data[corev1.TLSCertKey], secret.Data[corev1.TLSPrivateKeyKey]); err != nil {
		return "server key does not match certificate", false
	}
	if time.Until(leaf.NotAfter) < RotationThreshold {
		return "server certificate is near expiry", false
	}
	if err := leaf.CheckSignatureFrom(ca.Cert); err != nil {
		return "server certificate was not signed by the current CA", false
	}
	for _, h := range r.Hosts() {
		if err := leaf.VerifyHostname(h); err != nil {
			return fmt.Sprintf("server certificate does not cover %s", h), false
		}
	}
	return "", false
}

// regenerate refills secret.Data, keeping the stored CA unless rotateCA.
func (r *Rotator) regenerate(secret *corev1.Secret, rotateCA bool) error {
	var ca *Authority
	if !rotateCA {
		var err error
		if ca, err = ParseAuthority(secret.Data[CACertKey], secret.Data[CAKeyKey]); err != nil {
			return fmt.Errorf("failed to read CA: %w", err)
		}
	} else {
		var err error
		if ca, err = NewAuthority(r.opts.ServiceName + " CA"); err != nil {
			return err
		}
	}

	pair, err := ca.Issue(r.opts.ServiceName, r.Hosts())
	if err != nil {
		return err
	}
	secret.Data = map[string][]byte{
		CACertKey:               ca.CertPEM,
		CAKeyKey:                ca.KeyPEM,
		corev1.TLSCertKey:       pair.CertPEM,
		corev1.TLSPrivateKeyKey: pair.KeyPEM,
	}
	return nil
}

func (r *Rotator) load(secret *corev1.Secret) error {
	pair, err := tls.X509KeyPair(secret.Data[corev1.TLSCertKey], secret.Data[corev1.TLSPrivateKeyKey])
	if err != nil {
		return fmt.Errorf("failed to load serving certificate: %w", err)
	}
	if pair.Leaf == nil {
		if pair.Leaf, err = x509.ParseCertificate(pair.Certificate[0]); err != nil {
			return fmt.Errorf("failed to parse serving certificate: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = &pair
	r.caBundle = slices.Clone(secret.Data[CACertKey])
	return nil
}

func (r *Rotator) event(secret *corev1.Secret, reason, message string) {
	if r.recorder != nil {
		r.recorder.Event(secret, corev1.EventTypeNormal, reason, message)
	}
}
