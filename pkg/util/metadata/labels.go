package metadata

import (
	"maps"
)

// Standard Kubernetes label keys following kubernetes.io conventions.
//
// See: https://kubernetes.io/docs/concepts/overview/working-with-objects/common-labels/
const (
	// LabelAppName is the standard label key for the application name.
	LabelAppName = "app.kubernetes.io/name"

	// LabelAppInstance is the standard label key for the unique instance name.
	LabelAppInstance = "app.kubernetes.io/instance"

	// LabelAppComponent is the standard label key for the component within the
	// application.
	LabelAppComponent = "app.kubernetes.io/component"

	// LabelAppManagedBy is the standard label key for the tool managing the
	// resource.
	LabelAppManagedBy = "app.kubernetes.io/managed-by"
)

const (
	// AppNameDomainOperator is the fixed application name for operator-owned
	// resources.
	AppNameDomainOperator = "domain-operator"

	// ManagedByDomainOperator identifies the operator managing these resources.
	ManagedByDomainOperator = "domain-operator"
)

const (
	// ComponentServingCert identifies the scale endpoint's certificate Secret.
	ComponentServingCert = "serving-cert"
)

// LabelDomainUID identifies which Domain a resource belongs to.
const LabelDomainUID = "operator.numtide.com/domain-uid"

// BuildStandardLabels returns a map of standard kubernetes labels.
// instance names the owning object, component the role of the resource.
func BuildStandardLabels(instance, component string) map[string]string {
	return map[string]string{
		LabelAppName:      AppNameDomainOperator,
		LabelAppInstance:  instance,
		LabelAppComponent: component,
		LabelAppManagedBy: ManagedByDomainOperator,
	}
}

// AddDomainLabel adds the Domain UID label to the provided labels map.
func AddDomainLabel(labels map[string]string, domainUID string) map[string]string {
	labels[LabelDomainUID] = domainUID
	return labels
}

// MergeLabels returns a new map holding customLabels overlaid with
// standardLabels. Standard labels win on conflicts, so user labels can never
// hide an object from the operator's selectors.
func MergeLabels(standardLabels, customLabels map[string]string) map[string]string {
	merged := make(map[string]string, len(standardLabels)+len(customLabels))
	maps.Copy(merged, customLabels)
	maps.Copy(merged, standardLabels)
	return merged
}
