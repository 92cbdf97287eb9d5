package handlers

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"

	domainv1alpha1 "github.com/numtide/domain-operator/api/v1alpha1"
)

// +kubebuilder:webhook:path=/validate-operator-numtide-com-v1alpha1-domain,mutating=false,failurePolicy=fail,sideEffects=None,groups=operator.numtide.com,resources=domains,verbs=create;update,versions=v1alpha1,name=vdomain.kb.io,admissionReviewVersions=v1

// DomainValidator validates Create and Update events for Domains.
type DomainValidator struct{}

var _ admission.CustomValidator = &DomainValidator{}

// NewDomainValidator creates a new validator for Domains.
func NewDomainValidator() *DomainValidator {
	return &DomainValidator{}
}

func (v *DomainValidator) ValidateCreate(
	_ context.Context,
	obj runtime.Object,
) (admission.Warnings, error) {
	domain, err := asDomain(obj)
	if err != nil {
		return nil, err
	}
	return warnings(domain), invalid(domain, validateSpec(domain))
}

func (v *DomainValidator) ValidateUpdate(
	_ context.Context,
	oldObj, newObj runtime.Object,
) (admission.Warnings, error) {
	oldDomain, err := asDomain(oldObj)
	if err != nil {
		return nil, err
	}
	domain, err := asDomain(newObj)
	if err != nil {
		return nil, err
	}

	errs := validateSpec(domain)
	if domain.Spec.DomainUID != oldDomain.Spec.DomainUID {
		errs = append(errs, field.Forbidden(
			field.NewPath("spec", "domainUID"),
			"domainUID is immutable",
		))
	}
	return warnings(domain), invalid(domain, errs)
}

func (v *DomainValidator) ValidateDelete(
	_ context.Context,
	_ runtime.Object,
) (admission.Warnings, error) {
	return nil, nil
}

func validateSpec(domain *domainv1alpha1.Domain) field.ErrorList {
	var errs field.ErrorList
	spec := field.NewPath("spec")

	if domain.Spec.DomainUID == "" {
		errs = append(errs, field.Required(spec.Child("domainUID"), "domainUID must not be empty"))
	}
	if r := domain.Spec.Replicas; r != nil && *r < 0 {
		errs = append(errs, field.Invalid(spec.Child("replicas"), *r, "must not be negative"))
	}

	seen := map[string]bool{}
	for i, c := range domain.Spec.Clusters {
		path := spec.Child("clusters").Index(i)
		switch {
		case c.ClusterName == "":
			errs = append(errs, field.Required(path.Child("clusterName"), "cluster name must not be empty"))
		case seen[c.ClusterName]:
			errs = append(errs, field.Duplicate(path.Child("clusterName"), c.ClusterName))
		}
		seen[c.ClusterName] = true

		if c.Replicas != nil && *c.Replicas < 0 {
			errs = append(errs, field.Invalid(path.Child("replicas"), *c.Replicas, "must not be negative"))
		}
	}
	return errs
}

func warnings(domain *domainv1alpha1.Domain) admission.Warnings {
	if domain.Spec.Replicas != nil {
		return nil
	}
	return admission.Warnings{fmt.Sprintf(
		"spec.replicas is not set; clusters without an override run %d replicas",
		domainv1alpha1.DefaultReplicaLimit,
	)}
}

func invalid(domain *domainv1alpha1.Domain, errs field.ErrorList) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.NewInvalid(
		domainv1alpha1.GroupVersion.WithKind("Domain").GroupKind(),
		domain.Name,
		errs,
	)
}

func asDomain(obj runtime.Object) (*domainv1alpha1.Domain, error) {
	domain, ok := obj.(*domainv1alpha1.Domain)
	if !ok {
		return nil, fmt.Errorf("expected Domain, got %T", obj)
	}
	return domain, nil
}
