package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/flexprice/dunning/internal/arena"
	"github.com/flexprice/dunning/internal/config"
	"github.com/flexprice/dunning/internal/domain/invoice"
	"github.com/flexprice/dunning/internal/logger"
	"github.com/flexprice/dunning/internal/types"
	"github.com/stretchr/testify/suite"
)

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	store    *InMemorySnapshotStore
	pubSub   *InMemoryPubSub
	sender   *RecordingSender
	provider *InMemoryInvoiceProvider
	logger   *logger.Logger
	config   *config.Configuration

	clockMu sync.Mutex
	now     time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	s.config = config.GetDefaultConfig()
	s.config.Outbox.MaxRetries = 2
	s.config.Outbox.InitialInterval = time.Millisecond
	s.config.Outbox.MaxInterval = 5 * time.Millisecond
	s.config.Outbox.MaxElapsedTime = time.Second
	s.logger = logger.NewNoopLogger()
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.store = NewInMemorySnapshotStore()
	s.pubSub = NewInMemoryPubSub()
	s.sender = NewRecordingSender()
	s.provider = NewInMemoryInvoiceProvider()
	s.config.Dunning.Defaults = config.DefaultDunningSettings()
	s.config.Dunning.Tenants = nil
	s.SetNow(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.store.Clear()
	s.pubSub.ClearMessages()
	s.sender.Clear()
}

func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}


func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

func (s *BaseServiceTestSuite) GetStore() *InMemorySnapshotStore {
	return s.store
}

func (s *BaseServiceTestSuite) GetPubSub() *InMemoryPubSub {
	return s.pubSub
}

func (s *BaseServiceTestSuite) GetSender() *RecordingSender {
	return s.sender
}

func (s *BaseServiceTestSuite) GetInvoiceProvider() *InMemoryInvoiceProvider {
	return s.provider
}

func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// NewArena returns an arena over the suite store. Every call starts with
// empty document caches, like a new process would.
func (s *BaseServiceTestSuite) NewArena() *arena.Arena {
	return arena.New(s.store, s.logger)
}

// NewTenant returns an unloaded tenant context over the suite store
func (s *BaseServiceTestSuite) NewTenant(tenantID string) *arena.Tenant {
	return arena.NewTenant(s.store, tenantID)
}

func (s *BaseServiceTestSuite) GetNow() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	return s.now
}

func (s *BaseServiceTestSuite) SetNow(now time.Time) {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	s.now = now.UTC()
}

// Advance moves the suite clock forward
func (s *BaseServiceTestSuite) Advance(d time.Duration) {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	s.now = s.now.Add(d)
}

// Clock returns a clock function reading the suite time
func (s *BaseServiceTestSuite) Clock() func() time.Time {
	return s.GetNow
}

func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}

// NewOverdueInvoice returns an invoice of the test tenant due daysOverdue
// days before the suite time
func (s *BaseServiceTestSuite) NewOverdueInvoice(invoiceID string, daysOverdue int, amountCents int64) *invoice.OverdueInvoice {
	return &invoice.OverdueInvoice{
		TenantID:      TestTenantID,
		InvoiceID:     invoiceID,
		InvoiceNumber: "RE-" + invoiceID,
		DueDate:       s.GetNow().Add(-time.Duration(daysOverdue) * 24 * time.Hour),
		AmountCents:   amountCents,
		Currency:      "EUR",
		Recipient: invoice.Recipient{
			Name:  "Debtor " + invoiceID,
			Email: invoiceID + "@example.com",
		},
	}
}
