package domain

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/equality"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	domainv1alpha1 "github.com/numtide/domain-operator/api/v1alpha1"
	"github.com/numtide/domain-operator/pkg/monitoring"
	"github.com/numtide/domain-operator/pkg/scale"
)

// TopologyRequeueInterval is how long to wait before retrying a Domain whose
// topology could not be retrieved.
const TopologyRequeueInterval = 30 * time.Second

const (
	reasonTopologyRetrieved   = "TopologyRetrieved"
	reasonTopologyUnavailable = "TopologyUnavailable"
)

// DomainReconciler keeps Domain status in step with spec and live topology.
type DomainReconciler struct {
	client.Client
	Scheme *runtime.Scheme

	// Topology retrieves the live topology of a Domain.
	Topology scale.TopologyFetcher
	// TopologyTimeout bounds each retrieval. Zero means the retriever default.
	TopologyTimeout time.Duration
}

// Reconcile refreshes the status of one Domain.
func (r *DomainReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	ctx, span := monitoring.StartReconcileSpan(ctx, "Domain.Reconcile", req.Name, req.Namespace, "Domain")
	defer span.End()
	logger := log.FromContext(ctx)

	domain := &domainv1alpha1.Domain{}
	if err := r.Get(ctx, req.NamespacedName, domain); err != nil {
		if apierrors.IsNotFound(err) {
			logger.Info("Domain resource not found, ignoring")
			monitoring.DeleteDomainReplicas(req.Name, req.Namespace)
			return ctrl.Result{}, nil
		}
		logger.Error(err, "Failed to get Domain")
		monitoring.RecordSpanError(span, err)
		return ctrl.Result{}, err
	}

	if !domain.DeletionTimestamp.IsZero() {
		monitoring.DeleteDomainReplicas(domain.Name, domain.Namespace)
		return ctrl.Result{}, nil
	}

	topology, topoErr := r.Topology.Fetch(
		ctx,
		scale.DomainKey{Namespace: domain.Namespace, UID: domain.Spec.DomainUID},
		r.TopologyTimeout,
	)
	if topoErr != nil {
		logger.V(1).Info("Topology not available", "reason", topoErr.Error())
		topology = nil
	}

	if err := r.updateStatus(ctx, domain, topology, topoErr); err != nil {
		logger.Error(err, "Failed to update Domain status")
		monitoring.RecordSpanError(span, err)
		return ctrl.Result{}, err
	}

	for _, c := range domain.Status.Clusters {
		monitoring.SetClusterReplicas(domain.Name, domain.Namespace, c.ClusterName, c.Replicas, c.MaximumReplicas)
	}

	if topoErr != nil {
		return ctrl.Result{RequeueAfter: TopologyRequeueInterval}, nil
	}
	return ctrl.Result{}, nil
}

func (r *DomainReconciler) updateStatus(
	ctx context.Context,
	domain *domainv1alpha1.Domain,
	topology *scale.DomainTopology,
	topoErr error,
) error {
	before := domain.Status.DeepCopy()
	domain.Status.ObservedGeneration = domain.Generation
	domain.Status.Clusters = clusterStatuses(domain, topology)

	cond := metav1.Condition{
		Type:               domainv1alpha1.ConditionTopologyAvailable,
		Status:             metav1.ConditionTrue,
		Reason:             reasonTopologyRetrieved,
		Message:            "Live topology retrieved",
		ObservedGeneration: domain.Generation,
	}
	if topoErr != nil {
		cond.Status = metav1.ConditionFalse
		cond.Reason = reasonTopologyUnavailable
		cond.Message = topoErr.Error()
	}
	meta.SetStatusCondition(&domain.Status.Conditions, cond)

	if equality.Semantic.DeepEqual(before, &domain.Status) {
		return nil
	}
	if err := r.Status().Update(ctx, domain); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return nil
}

// clusterStatuses reports every cluster declared in the spec or known to the
// topology, sorted by name. topology may be nil.
func clusterStatuses(domain *domainv1alpha1.Domain, topology *scale.DomainTopology) []domainv1alpha1.ClusterStatus {
	names := make([]string, 0, len(domain.Spec.Clusters))
	for _, c := range domain.Spec.Clusters {
		names = append(names, c.ClusterName)
	}
	if topology != nil {
		for _, c := range topology.Clusters {
			names = append(names, c.Name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	slices.Sort(names)
	names = slices.Compact(names)

	statuses := make([]domainv1alpha1.ClusterStatus, 0, len(names))
	for _, name := range names {
		status := domainv1alpha1.ClusterStatus{
			ClusterName: name,
			Replicas:    domain.ReplicaCount(name),
		}
		if topology != nil {
			if c, ok := topology.Cluster(name); ok {
				status.MaximumReplicas = int32(c.Size())
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// domainsForTopology maps a topology ConfigMap to the Domains that own it.
func (r *DomainReconciler) domainsForTopology(ctx context.Context, obj client.Object) []reconcile.Request {
	uid, ok := strings.CutSuffix(obj.GetName(), scale.TopologyConfigMapSuffix)
	if !ok || uid == "" {
		return nil
	}

	domains := &domainv1alpha1.DomainList{}
	if err := r.List(ctx, domains, client.InNamespace(obj.GetNamespace())); err != nil {
		log.FromContext(ctx).Error(err, "Failed to list Domains for topology ConfigMap", "configMap", obj.GetName())
		return nil
	}

	var requests []reconcile.Request
	for _, d := range domains.Items {
		if d.Spec.DomainUID == uid {
			requests = append(requests, reconcile.Request{
				NamespacedName: types.NamespacedName{Namespace: d.Namespace, Name: d.Name},
			})
		}
	}
	return requests
}

// SetupWithManager sets up the controller with the Manager.
func (r *DomainReconciler) SetupWithManager(mgr ctrl.Manager, opts ...controller.Options) error {
	controllerOpts := controller.Options{}
	if len(opts) > 0 {
		controllerOpts = opts[0]
	}

	return ctrl.NewControllerManagedBy(mgr).
		Named("domain").
		For(&domainv1alpha1.Domain{}).
		Watches(&corev1.ConfigMap{}, handler.EnqueueRequestsFromMapFunc(r.domainsForTopology)).
		WithOptions(controllerOpts).
		Complete(r)
}
