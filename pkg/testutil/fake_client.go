package testutil

import (
	"context"
	"errors"

	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"
)

// FailureConfig decides which fake client calls fail. A hook returning a
// non-nil error short-circuits the call; nil hooks always pass through.
type FailureConfig struct {
	OnGet          func(key client.ObjectKey) error
	OnList         func(list client.ObjectList, opts ...client.ListOption) error
	OnCreate       func(obj client.Object) error
	OnUpdate       func(obj client.Object) error
	OnStatusUpdate func(obj client.Object) error
}

// NewFakeClientWithFailures wraps base so that the hooks in config can fail
// individual operations. A nil config yields a pass-through client.
func NewFakeClientWithFailures(base client.WithWatch, config *FailureConfig) client.WithWatch {
	if config == nil {
		return base
	}
	return interceptor.NewClient(base, config.funcs())
}

func (f *FailureConfig) funcs() interceptor.Funcs {
	return interceptor.Funcs{
		Get: func(
			ctx context.Context,
			c client.WithWatch,
			key client.ObjectKey,
			obj client.Object,
			opts ...client.GetOption,
		) error {
			if f.OnGet != nil {
				if err := f.OnGet(key); err != nil {
					return err
				}
			}
			return c.Get(ctx, key, obj, opts...)
		},
		List: func(ctx context.Context, c client.WithWatch, list client.ObjectList, opts ...client.ListOption) error {
			if f.OnList != nil {
				if err := f.OnList(list, opts...); err != nil {
					return err
				}
			}
			return c.List(ctx, list, opts...)
		},
		Create: func(ctx context.Context, c client.WithWatch, obj client.Object, opts ...client.CreateOption) error {
			if f.OnCreate != nil {
				if err := f.OnCreate(obj); err != nil {
					return err
				}
			}
			return c.Create(ctx, obj, opts...)
		},
		Update: func(ctx context.Context, c client.WithWatch, obj client.Object, opts ...client.UpdateOption) error {
			if f.OnUpdate != nil {
				if err := f.OnUpdate(obj); err != nil {
					return err
				}
			}
			return c.Update(ctx, obj, opts...)
		},
		SubResourceUpdate: func(
			ctx context.Context,
			c client.Client,
			subResource string,
			obj client.Object,
			opts ...client.SubResourceUpdateOption,
		) error {
			if subResource == "status" && f.OnStatusUpdate != nil {
				if err := f.OnStatusUpdate(obj); err != nil {
					return err
				}
			}
			return c.SubResource(subResource).Update(ctx, obj, opts...)
		},
	}
}

// FailOnNamespace fails writes to objects in namespace.
func FailOnNamespace(namespace string, err error) func(client.Object) error {
	return func(obj client.Object) error {
		if obj.GetNamespace() == namespace {
			return err
		}
		return nil
	}
}

// FailListInNamespace fails List calls scoped to namespace.
func FailListInNamespace(namespace string, err error) func(client.ObjectList, ...client.ListOption) error {
	return func(_ client.ObjectList, opts ...client.ListOption) error {
		listOpts := &client.ListOptions{}
		listOpts.ApplyOptions(opts)
		if listOpts.Namespace == namespace {
			return err
		}
		return nil
	}
}

// FailOnKeyName fails Get calls for objects called name.
func FailOnKeyName(name string, err error) func(client.ObjectKey) error {
	return func(key client.ObjectKey) error {
		if key.Name == name {
			return err
		}
		return nil
	}
}

// AlwaysFail returns err for every call.
func AlwaysFail(err error) func(client.Object) error {
	return func(client.Object) error {
		return err
	}
}

// Errors injected by tests.
var (
	ErrInjected       = errors.New("injected test error")
	ErrNetworkTimeout = errors.New("network timeout")
)
