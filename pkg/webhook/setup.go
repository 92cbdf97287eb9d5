package webhook

import (
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"

	domainv1alpha1 "github.com/numtide/domain-operator/api/v1alpha1"
	"github.com/numtide/domain-operator/pkg/webhook/handlers"
)

// ValidateDomainPath is the path of the Domain validating webhook. It must
// match the ValidatingWebhookConfiguration.
const ValidateDomainPath = "/validate-operator-numtide-com-v1alpha1-domain"

// Options contains the configuration required to set up the webhook server.
type Options struct {
	// Enable indicates whether to register the admission handlers.
	Enable bool
}

// Setup registers the admission handlers with the manager's webhook server.
func Setup(mgr ctrl.Manager, opts Options) error {
	if !opts.Enable {
		return nil
	}

	logger := mgr.GetLogger().WithName("webhook-setup")
	logger.Info("Registering admission webhooks")

	mgr.GetWebhookServer().Register(
		ValidateDomainPath,
		admission.WithCustomValidator(mgr.GetScheme(), &domainv1alpha1.Domain{}, handlers.NewDomainValidator()),
	)
	return nil
}
