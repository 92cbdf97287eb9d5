// Package cert provisions the self-signed TLS certificate of the operator's
// REST endpoint.
//
// The CA and the server pair live together in one kubernetes.io/tls Secret.
// On startup the Rotator creates the Secret when it is missing; afterwards a
// background loop replaces the server certificate when it nears expiry, no
// longer covers the service hostnames, or was signed by another CA. A corrupt
// or expiring CA is regenerated together with the server pair.
//
// The current pair is served from memory through GetCertificate:
//
//	rotator := cert.NewRotator(c, recorder, cert.Options{
//	    Namespace:   "operator-ns",
//	    SecretName:  "domain-operator-rest-tls",
//	    ServiceName: "domain-operator",
//	})
//	if err := rotator.Bootstrap(ctx); err != nil {
//	    // handle error
//	}
//	tlsConfig := &tls.Config{GetCertificate: rotator.GetCertificate}
//
// Deployments that provision certificates externally (for example with
// cert-manager) leave the rotator out and point the server at a cert directory.
package cert
