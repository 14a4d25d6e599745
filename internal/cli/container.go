package cli

import (
	"errors"

	"github.com/samber/do/v2"
	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/bibliothecula/internal/indexer"
	"github.com/mesh-intelligence/bibliothecula/internal/scanner"
	"github.com/mesh-intelligence/bibliothecula/internal/sqlite"
	"github.com/mesh-intelligence/bibliothecula/internal/tasks"
	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

// shutdowner is a service that holds resources until shut down.
type shutdowner interface {
	Shutdown() error
}

// lifecycle records the services built during one invocation so they can be
// shut down newest first.
type lifecycle struct {
	services []shutdowner
}

func (l *lifecycle) add(s shutdowner) {
	l.services = append(l.services, s)
}

func (l *lifecycle) shutdown() error {
	var errs []error
	for i := len(l.services) - 1; i >= 0; i-- {
		if err := l.services[i].Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	l.services = nil
	return errors.Join(errs...)
}

// newContainer registers the library services. Providers are lazy: the
// database is opened the first time a command asks for the store.
func newContainer(log *logrus.Logger, cfg types.Config) *do.RootScope {
	injector := do.New()
	do.ProvideValue(injector, log)
	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, &lifecycle{})
	do.Provide(injector, provideStore)
	do.Provide(injector, provideTasks)
	do.Provide(injector, provideScanner)
	do.Provide(injector, provideIndexer)
	return injector
}

// provideStore attaches the SQLite backend. Its Shutdown detaches it.
func provideStore(i do.Injector) (*sqlite.Backend, error) {
	log := do.MustInvoke[*logrus.Logger](i)
	cfg := do.MustInvoke[types.Config](i)

	store := sqlite.NewBackend(sqlite.WithLogger(log))
	if err := store.Attach(cfg); err != nil {
		return nil, err
	}
	do.MustInvoke[*lifecycle](i).add(store)
	log.WithField("path", store.Path()).Debug("library attached")
	return store, nil
}

// provideTasks starts a task manager. Tasks write to the store, so the
// store is resolved first and outlives the manager on shutdown.
func provideTasks(i do.Injector) (*tasks.Manager, error) {
	log := do.MustInvoke[*logrus.Logger](i)
	if _, err := do.Invoke[*sqlite.Backend](i); err != nil {
		return nil, err
	}
	manager := tasks.NewManager(log.WithField("component", "tasks"))
	do.MustInvoke[*lifecycle](i).add(manager)
	return manager, nil
}

func provideScanner(i do.Injector) (*scanner.Scanner, error) {
	log := do.MustInvoke[*logrus.Logger](i)
	store, err := do.Invoke[*sqlite.Backend](i)
	if err != nil {
		return nil, err
	}
	return scanner.New(store, log.WithField("component", "scanner"), 0), nil
}

func provideIndexer(i do.Injector) (*indexer.Indexer, error) {
	log := do.MustInvoke[*logrus.Logger](i)
	store, err := do.Invoke[*sqlite.Backend](i)
	if err != nil {
		return nil, err
	}
	manager, err := do.Invoke[*tasks.Manager](i)
	if err != nil {
		return nil, err
	}
	return indexer.New(store, manager, log.WithField("component", "indexer")), nil
}

// store returns the attached library.
func (a *app) store() (*sqlite.Backend, error) {
	return do.Invoke[*sqlite.Backend](a.injector)
}

func (a *app) tasks() (*tasks.Manager, error) {
	return do.Invoke[*tasks.Manager](a.injector)
}

func (a *app) scanner() (*scanner.Scanner, error) {
	return do.Invoke[*scanner.Scanner](a.injector)
}

func (a *app) indexer() (*indexer.Indexer, error) {
	return do.Invoke[*indexer.Indexer](a.injector)
}
