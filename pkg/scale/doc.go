// Package scale implements the cluster scale path of the Domain Operator.
//
// A scale request resizes one cluster of a Domain by writing its per-cluster
// replica override. The Coordinator runs the request in a fixed order:
//
//  1. Validate the request (negative counts never reach a collaborator).
//  2. Authenticate the bearer token and authorize the scale action through
//     the AuthGate (TokenReview + SubjectAccessReview).
//  3. Locate the Domain by spec.domainUID across the watched namespaces.
//  4. Retrieve the live topology with a bounded deadline and check the
//     requested count against the cluster's configured members.
//  5. Write the override with a single optimistic-concurrency Replace, and
//     only when the effective count differs from the request.
//
// Failures are apimachinery StatusErrors, so callers classify them with
// apierrors.IsBadRequest, IsUnauthorized, IsForbidden, IsNotFound, IsTimeout
// and IsConflict. IsRetriable groups the transient kinds.
package scale
