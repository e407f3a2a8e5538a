package service

import (
	"time"

	"github.com/flexprice/dunning/internal/arena"
	"github.com/flexprice/dunning/internal/cache"
	"github.com/flexprice/dunning/internal/config"
	"github.com/flexprice/dunning/internal/domain/invoice"
	"github.com/flexprice/dunning/internal/idempotency"
	"github.com/flexprice/dunning/internal/logger"
	"github.com/flexprice/dunning/internal/notification"
	"github.com/flexprice/dunning/internal/pubsub"
	"github.com/flexprice/dunning/internal/sentry"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger    *logger.Logger
	Config    *config.Configuration
	Cache     cache.Cache
	Generator *idempotency.Generator
	Arena     *arena.Arena
	Sentry    *sentry.Service

	// Collaborators
	InvoiceProvider invoice.Provider
	Sender          notification.Sender
	EventPublisher  pubsub.Publisher

	// Clock returns the current time; nil means time.Now
	Clock func() time.Time
}

// NewServiceParams creates a new ServiceParams instance
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	cache cache.Cache,
	arena *arena.Arena,
	sentry *sentry.Service,
	invoiceProvider invoice.Provider,
	sender notification.Sender,
	eventPublisher pubsub.PubSub,
) ServiceParams {
	return ServiceParams{
		Logger:          logger,
		Config:          config,
		Cache:           cache,
		Generator:       idempotency.NewGenerator(),
		Arena:           arena,
		Sentry:          sentry,
		InvoiceProvider: invoiceProvider,
		Sender:          sender,
		EventPublisher:  eventPublisher,
	}
}

func (p ServiceParams) now() time.Time {
	if p.Clock != nil {
		return p.Clock().UTC()
	}
	return time.Now().UTC()
}
