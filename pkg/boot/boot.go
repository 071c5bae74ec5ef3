// Package boot wires a resource, an environment, a bean factory and a
// definition reader into a running application.
package boot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/01fortes/beanboot/pkg/container"
	"github.com/01fortes/beanboot/pkg/reader"
	"github.com/01fortes/beanboot/pkg/resource"
)

const (
	// DefaultResource is loaded when Options.Resource is empty
	DefaultResource = "applicationContext.xml"
	// EnvPrefix selects process environment variables visible to placeholders,
	// GOBOOT_STUDENT_NAME becomes ${student.name}
	EnvPrefix = "GOBOOT_"
)

// ErrClosed is returned when refreshing an application that was closed
var ErrClosed = errors.New("application is closed")

// Options configure an application
type Options struct {
	// Resource location: a class path name, or a classpath: or file: URL
	Resource string
	// ClassPath roots (resource.DefaultClassPath if nil)
	ClassPath []string
	// Profiles to activate; empty falls back to GO_BOOT_ACTIVE_PROFILES and
	// then to goboot.profiles.active in the config directory
	Profiles []string
	// ConfigDir holds application.yml and application-<profile>.yml. Empty
	// skips config files.
	ConfigDir string
	// Eager creates non-lazy singletons while loading
	Eager bool
	// Watch makes Run refresh the application when the resource file changes
	Watch bool
	// Debounce for resource change events (resource.DefaultDebounce if zero)
	Debounce time.Duration
	// Starters run after definitions are loaded
	Starters []container.Starter
	// Types maps class names to Go types (container.Types if nil)
	Types *container.TypeRegistry
	// MetricsRegisterer receives bean metrics when set
	MetricsRegisterer prometheus.Registerer
	// Logger (uses slog.Default if nil)
	Logger *slog.Logger
}

// generation is one factory built from the resource. Refreshing the
// application replaces the current generation.
type generation struct {
	factory *container.Factory
	env     *container.Environment
	count   int
	done    chan struct{}
	runners sync.WaitGroup
}

// Application owns the bean factory built from a resource
type Application struct {
	opts   Options
	res    resource.Resource
	logger *slog.Logger

	mu     sync.RWMutex
	gen    *generation
	closed bool
}

// Load locates the resource, creates a factory, binds a reader to it and
// loads the definitions
func Load(ctx context.Context, opts Options) (*Application, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ClassPath == nil {
		opts.ClassPath = resource.DefaultClassPath()
	}
	location := opts.Resource
	if location == "" {
		location = DefaultResource
	}

	a := &Application{
		opts:   opts,
		res:    resource.Resolve(location, opts.ClassPath),
		logger: opts.Logger,
	}

	start := time.Now()
	gen, err := a.build(ctx)
	if err != nil {
		return nil, err
	}
	a.gen = gen

	a.logger.Info("Application loaded",
		"resource", a.res.Description(),
		"definitions", gen.count,
		"profiles", gen.env.ActiveProfiles(),
		"time_ms", time.Since(start).Milliseconds())
	return a, nil
}

func (a *Application) build(ctx context.Context) (*generation, error) {
	env := container.NewEnvironment(a.opts.Profiles...)
	env.SetLogger(a.logger)

	var loaders []container.VariableLoader
	if a.opts.ConfigDir != "" {
		loaders = append(loaders, container.ProfileYamlLoader{ConfigPath: a.opts.ConfigDir})
	}
	loaders = append(loaders, container.EnvVariableLoader{Prefix: EnvPrefix})
	if err := env.Load(loaders...); err != nil {
		return nil, err
	}

	cfg := container.DefaultConfig()
	cfg.Logger = a.logger
	cfg.Environment = env
	cfg.MetricsRegisterer = a.opts.MetricsRegisterer
	if a.opts.Types != nil {
		cfg.Types = a.opts.Types
	}
	factory := container.New(cfg)

	r, err := reader.ForResource(factory, a.res, reader.Options{
		Environment: env,
		ClassPath:   a.opts.ClassPath,
		Types:       cfg.Types,
		Logger:      a.logger,
	})
	if err != nil {
		return nil, err
	}
	count, err := r.LoadBeanDefinitions(a.res)
	if err != nil {
		return nil, err
	}

	if err := container.ApplyStarters(factory, env, a.opts.Starters...); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if a.opts.Eager {
		if err := factory.PreInstantiateSingletons(); err != nil {
			if derr := factory.DestroySingletons(); derr != nil {
				a.logger.Warn("Errors destroying partially started factory", "error", derr)
			}
			return nil, err
		}
	}

	return &generation{
		factory: factory,
		env:     env,
		count:   count,
		done:    make(chan struct{}),
	}, nil
}

func (a *Application) current() *generation {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.gen
}

// Factory returns the current bean factory
func (a *Application) Factory() *container.Factory {
	return a.current().factory
}

// Environment returns the environment of the current factory
func (a *Application) Environment() *container.Environment {
	return a.current().env
}

// Definitions returns the number of definitions loaded, imports included
func (a *Application) Definitions() int {
	return a.current().count
}

// Resource returns the resource definitions are loaded from
func (a *Application) Resource() resource.Resource {
	return a.res
}

// Close stops runnable beans and destroys the singletons of the current
// factory. Calls after the first return nil.
func (a *Application) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	gen := a.gen
	a.mu.Unlock()

	a.logger.Info("Closing application", "resource", a.res.Description())
	return a.retire(gen)
}

// retire stops the runnable beans of gen and destroys its singletons
func (a *Application) retire(gen *generation) error {
	close(gen.done)
	gen.runners.Wait()
	return gen.factory.DestroySingletons()
}

// Refresh rebuilds the factory from the resource and swaps it in. On error
// the current factory stays in place.
func (a *Application) Refresh(ctx context.Context) error {
	gen, err := a.build(ctx)
	if err != nil {
		a.logger.Error("Refresh failed, keeping current definitions", "resource", a.res.Description(), "error", err)
		return err
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return errors.Join(ErrClosed, gen.factory.DestroySingletons())
	}
	old := a.gen
	a.gen = gen
	a.mu.Unlock()

	a.logger.Info("Application refreshed", "resource", a.res.Description(), "definitions", gen.count)
	if err := a.retire(old); err != nil {
		a.logger.Warn("Errors destroying previous factory", "error", err)
	}
	return nil
}

// Watch refreshes the application whenever the resource file changes, until
// ctx is done. onRefresh, if set, is called with the new factory after each
// successful refresh.
func (a *Application) Watch(ctx context.Context, onRefresh func(*container.Factory)) error {
	w, err := resource.NewWatcher(a.res, a.logger)
	if err != nil {
		return err
	}
	w.SetDebounce(a.opts.Debounce)

	return w.Watch(ctx, func() {
		if err := a.Refresh(ctx); err != nil {
			return
		}
		if onRefresh != nil {
			onRefresh(a.Factory())
		}
	})
}

// Run starts every singleton implementing container.RunnableBean and blocks
// until ctx is done or the process receives SIGINT or SIGTERM. A runnable
// that fails stops the application. The application is closed on return.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.runBeans(gctx)
	})
	if a.opts.Watch {
		g.Go(func() error {
			return a.Watch(gctx, nil)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err := g.Wait()
	if cerr := a.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

// runBeans runs the runnable beans of each generation in turn
func (a *Application) runBeans(ctx context.Context) error {
	for {
		a.mu.RLock()
		gen := a.gen
		closed := a.closed
		if !closed {
			gen.runners.Add(1)
		}
		a.mu.RUnlock()
		if closed {
			return nil
		}

		if err := a.runGeneration(ctx, gen); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

var runnableType = reflect.TypeOf((*container.RunnableBean)(nil)).Elem()

func (a *Application) runGeneration(ctx context.Context, gen *generation) error {
	defer gen.runners.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-gen.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range gen.factory.GetBeanNamesForType(runnableType) {
		if singleton, err := gen.factory.IsSingleton(name); err == nil && !singleton {
			continue
		}
		bean, err := container.GetBeanAs[container.RunnableBean](gen.factory, name)
		if err != nil {
			return err
		}
		a.logger.Info("Starting runnable bean", "bean", name)
		name := name
		g.Go(func() error {
			err := bean.Run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("Runnable bean failed", "bean", name, "error", err)
				return fmt.Errorf("bean '%s': %w", name, err)
			}
			a.logger.Debug("Runnable bean stopped", "bean", name)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	return g.Wait()
}
