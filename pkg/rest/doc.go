// Package rest serves the operator's scale endpoint over HTTP.
//
// The only mutating route is
//
//	POST /operator/v1/domains/{domainUID}/clusters/{cluster}/scale
//
// with a JSON body of {"managedServerCount": <n>}. Callers authenticate with
// a Kubernetes bearer token and must send an X-Requested-By header. Failures
// are returned as metav1.Status documents carrying the HTTP code of the
// underlying StatusError.
package rest
