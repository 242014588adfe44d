package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/carebook/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// DirectoryServiceDeps captures dependencies for constructing a directory service.
type DirectoryServiceDeps struct {
	Users       application.UserStore
	Persons     application.PersonStore
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
	Options     []application.DirectoryOption
}

// NewDirectoryService builds a directory service using the supplied
// dependencies combined with the factory defaults.
func (f *ServiceFactory) NewDirectoryService(deps DirectoryServiceDeps) *application.DirectoryService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	return application.NewDirectoryServiceWithLogger(
		deps.Users,
		deps.Persons,
		idGen,
		now,
		deps.Logger,
		deps.Options...,
	)
}

// CatalogServiceDeps captures dependencies for constructing a catalog service.
type CatalogServiceDeps struct {
	Activities  application.ActivityStore
	Cache       application.ActivityCache
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewCatalogService builds a catalog service using the supplied dependencies.
func (f *ServiceFactory) NewCatalogService(deps CatalogServiceDeps) *application.CatalogService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	return application.NewCatalogServiceWithLogger(
		deps.Activities,
		deps.Cache,
		idGen,
		now,
		deps.Logger,
	)
}

// LedgerServiceDeps captures dependencies for constructing a ledger service.
type LedgerServiceDeps struct {
	Bookings    application.BookingStore
	Authorizer  application.Authorizer
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
	Options     []application.LedgerOption
}

// NewLedgerService builds a ledger service using the supplied dependencies.
func (f *ServiceFactory) NewLedgerService(deps LedgerServiceDeps) *application.LedgerService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	return application.NewLedgerServiceWithLogger(
		deps.Bookings,
		deps.Authorizer,
		idGen,
		now,
		deps.Logger,
		deps.Options...,
	)
}

// Services bundles the four services wired over one store.
type Services struct {
	Directory *application.DirectoryService
	Catalog   *application.CatalogService
	Ledger    *application.LedgerService
	Reporter  *application.ReporterService
}

// ServiceStore is satisfied by a store implementing every repository.
type ServiceStore interface {
	application.UserStore
	application.PersonStore
	application.ActivityStore
	application.BookingStore
	application.RosterStore
}

// NewServices wires every service over store the way the server binary does,
// without events or caching.
func (f *ServiceFactory) NewServices(store ServiceStore, logger *slog.Logger, opts ...application.DirectoryOption) Services {
	directory := f.NewDirectoryService(DirectoryServiceDeps{Users: store, Persons: store, Logger: logger, Options: opts})
	return Services{
		Directory: directory,
		Catalog:   f.NewCatalogService(CatalogServiceDeps{Activities: store, Logger: logger}),
		Ledger:    f.NewLedgerService(LedgerServiceDeps{Bookings: store, Authorizer: directory, Logger: logger}),
		Reporter:  application.NewReporterService(store, logger),
	}
}

func (f *ServiceFactory) defaults(idGen func() string, now func() time.Time) (func() string, func() time.Time) {
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return idGen, now
}
