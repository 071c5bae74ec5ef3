package container

import (
	"errors"
	"fmt"
	"time"
)

// disposable is a cached singleton with destroy callbacks
type disposable struct {
	bean          any
	destroyMethod string
}

// DestroySingletons destroys every cached singleton, dependents before the
// beans they depend on, and clears the cache. Failures are logged and
// collected but do not stop the sequence.
func (f *Factory) DestroySingletons() error {
	f.mu.Lock()
	order := f.singletonOrder
	disposables := f.disposables
	dependents := f.dependents
	f.singletons = make(map[string]any)
	f.singletonOrder = nil
	f.disposables = make(map[string]disposable)
	f.dependents = make(map[string]map[string]bool)
	f.mu.Unlock()

	f.logger.Info("Destroying singletons", "count", len(order))

	var errs []error
	destroyed := make(map[string]bool, len(order))

	var destroy func(name string)
	destroy = func(name string) {
		if destroyed[name] {
			return
		}
		destroyed[name] = true

		// Dependents go first, latest created first
		for i := len(order) - 1; i >= 0; i-- {
			if dependents[name][order[i]] {
				destroy(order[i])
			}
		}

		if d, ok := disposables[name]; ok {
			if err := f.destroyBean(name, d); err != nil {
				errs = append(errs, err)
			}
		}
	}

	for i := len(order) - 1; i >= 0; i-- {
		destroy(order[i])
	}
	return errors.Join(errs...)
}

func (f *Factory) destroyBean(name string, d disposable) (err error) {
	start := time.Now()
	f.logger.Debug("Destroying bean", "bean", name)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic destroying bean '%s': %v", name, r)
		}
		if err != nil {
			f.logger.Error("Error destroying bean", "bean", name, "error", err)
		}
		f.metrics.RecordDestroyDuration(name, time.Since(start))
	}()

	var errs []error
	disposableBean, isDisposable := d.bean.(DisposableBean)
	if isDisposable {
		if err := disposableBean.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("destroy of bean '%s' failed: %w", name, err))
		}
	}
	if d.destroyMethod != "" && !(isDisposable && d.destroyMethod == "Destroy") {
		if err := invokeMethod(d.bean, d.destroyMethod); err != nil {
			errs = append(errs, fmt.Errorf("destroy method '%s' of bean '%s' failed: %w", d.destroyMethod, name, err))
		}
	}
	return errors.Join(errs...)
}
