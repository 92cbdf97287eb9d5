/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"crypto/tls"
	"flag"
	"os"
	"strings"
	"time"

	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/util/retry"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/metrics/filters"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
	ctrlwebhook "sigs.k8s.io/controller-runtime/pkg/webhook"

	domainv1alpha1 "github.com/numtide/domain-operator/api/v1alpha1"
	"github.com/numtide/domain-operator/pkg/cert"
	domaincontroller "github.com/numtide/domain-operator/pkg/controller/domain"
	"github.com/numtide/domain-operator/pkg/rest"
	"github.com/numtide/domain-operator/pkg/scale"
	domainwebhook "github.com/numtide/domain-operator/pkg/webhook"
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(domainv1alpha1.AddToScheme(scheme))
	// +kubebuilder:scaffold:scheme
}

func main() {
	var metricsAddr string
	var enableLeaderElection bool
	var probeAddr string
	var secureMetrics bool
	var enableHTTP2 bool
	var tlsOpts []func(*tls.Config)
	var watchNamespaces string
	var topologyTimeout time.Duration

	// Webhook Flags
	var webhookEnabled bool
	var webhookCertDir string

	// REST Flags
	var restAddr string
	var restRequestTimeout time.Duration
	var restTLSEnabled bool
	var restTLSSecret string
	var restServiceName string

	defaultNS := os.Getenv("POD_NAMESPACE")
	if defaultNS == "" {
		defaultNS = "domain-operator-system"
	}
	defaultWatch := os.Getenv("WATCH_NAMESPACES")
	if defaultWatch == "" {
		defaultWatch = os.Getenv("POD_NAMESPACE")
	}

	// General Flags
	flag.StringVar(&metricsAddr, "metrics-bind-address", "0", "The address the metrics endpoint binds to.")
	flag.StringVar(&probeAddr, "health-probe-bind-address", ":8081", "The address the probe endpoint binds to.")
	flag.BoolVar(&enableLeaderElection, "leader-elect", false, "Enable leader election for controller manager.")
	flag.BoolVar(&secureMetrics, "metrics-secure", true, "If set, the metrics endpoint is served securely via HTTPS.")
	flag.BoolVar(&enableHTTP2, "enable-http2", false, "If set, HTTP/2 will be enabled for the metrics, webhook and REST servers")
	flag.StringVar(&watchNamespaces, "watch-namespaces", defaultWatch,
		"Comma-separated namespaces searched for Domains. Empty means all namespaces.")
	flag.DurationVar(&topologyTimeout, "topology-timeout", scale.DefaultTopologyTimeout,
		"Upper bound on a single live topology retrieval")

	// Webhook Flag Configuration
	flag.BoolVar(&webhookEnabled, "webhook-enable", true, "Enable the admission webhook server")
	flag.StringVar(&webhookCertDir, "webhook-cert-dir", "/var/run/secrets/webhook", "Directory to read webhook certificates from")

	// REST Flag Configuration
	flag.StringVar(&restAddr, "rest-bind-address", rest.DefaultAddr, "The address the scale endpoint binds to.")
	flag.DurationVar(&restRequestTimeout, "rest-request-timeout", rest.DefaultRequestTimeout, "Upper bound on a single scale request")
	flag.BoolVar(&restTLSEnabled, "rest-tls", true, "Serve the scale endpoint over HTTPS with a rotated self-signed certificate")
	flag.StringVar(&restTLSSecret, "rest-tls-secret", "domain-operator-rest-tls", "Secret holding the scale endpoint PKI")
	flag.StringVar(&restServiceName, "rest-service-name", "domain-operator-rest", "Name of the Kubernetes Service for the scale endpoint")

	opts := zap.Options{Development: true}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	disableHTTP2 := func(c *tls.Config) {
		setupLog.Info("disabling http/2")
		c.NextProtos = []string{"http/1.1"}
	}
	if !enableHTTP2 {
		tlsOpts = append(tlsOpts, disableHTTP2)
	}

	metricsServerOptions := metricsserver.Options{
		BindAddress:   metricsAddr,
		SecureServing: secureMetrics,
		TLSOpts:       tlsOpts,
	}

	if secureMetrics {
		metricsServerOptions.FilterProvider = filters.WithAuthenticationAndAuthorization
	}

	namespaces := splitNamespaces(watchNamespaces)
	cacheOptions := cache.Options{}
	if len(namespaces) > 0 {
		cacheOptions.DefaultNamespaces = map[string]cache.Config{}
		for _, ns := range namespaces {
			cacheOptions.DefaultNamespaces[ns] = cache.Config{}
		}
	} else {
		namespaces = []string{metav1.NamespaceAll}
	}
	setupLog.Info("watching namespaces", "namespaces", namespaces)

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Scheme:                 scheme,
		Metrics:                metricsServerOptions,
		HealthProbeBindAddress: probeAddr,
		LeaderElection:         enableLeaderElection,
		LeaderElectionID:       "domain-operator.operator.numtide.com",
		Cache:                  cacheOptions,
		WebhookServer: ctrlwebhook.NewServer(ctrlwebhook.Options{
			Port:    9443,
			CertDir: webhookCertDir,
			TLSOpts: tlsOpts,
		}),
		Client: client.Options{
			// Secrets are read before the cache starts and outside the
			// watched namespaces.
			Cache: &client.CacheOptions{
				DisableFor: []client.Object{&corev1.Secret{}},
			},
		},
	})
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		os.Exit(1)
	}

	// 1. Scale endpoint certificate
	var restTLS *tls.Config
	if restTLSEnabled {
		rotator := cert.NewRotator(mgr.GetClient(), mgr.GetEventRecorderFor("domain-operator-cert"), cert.Options{
			Namespace:   defaultNS,
			SecretName:  restTLSSecret,
			ServiceName: restServiceName,
		})

		// Bootstrap immediately so the REST server can start serving
		if err := rotator.Bootstrap(context.Background()); err != nil {
			setupLog.Error(err, "failed to bootstrap certificates")
			os.Exit(1)
		}
		if err := mgr.Add(rotator); err != nil {
			setupLog.Error(err, "unable to add cert rotator to manager")
			os.Exit(1)
		}

		restTLS = &tls.Config{
			MinVersion:     tls.VersionTLS12,
			GetCertificate: rotator.GetCertificate,
		}
		for _, o := range tlsOpts {
			o(restTLS)
		}
	}

	// 2. Scale coordinator and its collaborators
	topology := scale.NewTopologyRetriever(scale.NewConfigMapSource(mgr.GetClient()))
	coordinator := scale.NewCoordinator(
		scale.NewReviewGate(mgr.GetClient()),
		scale.NewKubeStore(mgr.GetClient()),
		topology,
		scale.Options{
			Namespaces:      namespaces,
			TopologyTimeout: topologyTimeout,
			Recorder:        mgr.GetEventRecorderFor("domain-operator"),
		},
	)

	backoff := retry.DefaultRetry
	if err := mgr.Add(rest.NewServer(coordinator, rest.Options{
		Addr:           restAddr,
		RequestTimeout: restRequestTimeout,
		Retry:          &backoff,
		TLSConfig:      restTLS,
	})); err != nil {
		setupLog.Error(err, "unable to add REST server to manager")
		os.Exit(1)
	}

	// 3. Controllers
	if err = (&domaincontroller.DomainReconciler{
		Client:          mgr.GetClient(),
		Scheme:          mgr.GetScheme(),
		Topology:        topology,
		TopologyTimeout: topologyTimeout,
	}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "Domain")
		os.Exit(1)
	}

	// 4. Register Webhook Handlers
	if err := domainwebhook.Setup(mgr, domainwebhook.Options{Enable: webhookEnabled}); err != nil {
		setupLog.Error(err, "unable to set up webhook")
		os.Exit(1)
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		os.Exit(1)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		os.Exit(1)
	}

	setupLog.Info("starting manager")
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "problem running manager")
		os.Exit(1)
	}
}

func splitNamespaces(value string) []string {
	var namespaces []string
	for ns := range strings.SplitSeq(value, ",") {
		if ns = strings.TrimSpace(ns); ns != "" {
			namespaces = append(namespaces, ns)
		}
	}
	return namespaces
}
