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

// Package webhook registers the Domain Operator's admission webhooks.
//
// [Setup] adds the Domain validating webhook (see pkg/webhook/handlers) to
// the controller-runtime manager's webhook server when [Options.Enable] is
// set. The webhook server reads its serving certificate from the manager's
// configured cert directory, which is expected to be provisioned externally
// (for example by cert-manager).
//
// Usage:
//
//	if err := webhook.Setup(mgr, webhook.Options{Enable: true}); err != nil {
//	    setupLog.Error(err, "unable to setup webhook")
//	    os.Exit(1)
//	}
package webhook
