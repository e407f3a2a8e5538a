package service

import (
	"errors"
	"testing"

	"github.com/flexprice/dunning/internal/arena"
	"github.com/flexprice/dunning/internal/domain/outbox"
	"github.com/flexprice/dunning/internal/domain/snapshot"
	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/flexprice/dunning/internal/pubsub"
	"github.com/flexprice/dunning/internal/testutil"
	"github.com/flexprice/dunning/internal/types"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/suite"
)

type DispatcherServiceSuite struct {
	testutil.BaseServiceTestSuite
	svc    *dunningServices
	tenant *arena.Tenant
}

func TestDispatcherService(t *testing.T) {
	suite.Run(t, new(DispatcherServiceSuite))
}

func (s *DispatcherServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.svc = newDunningServices(&s.BaseServiceTestSuite)
	s.tenant = s.NewTenant(testutil.TestTenantID)
}

func (s *DispatcherServiceSuite) eventTopic() string {
	return s.GetConfig().Outbox.EventTopic
}

func (s *DispatcherServiceSuite) decode(payload []byte) *outbox.Event {
	var ev outbox.Event
	s.Require().NoError(jsoniter.Unmarshal(payload, &ev))
	return &ev
}

func (s *DispatcherServiceSuite) TestPublishIssuedRecordsKey() {
	ctx := s.GetContext()
	inv := s.NewOverdueInvoice("INV-1", 5, 12345)

	dup, err := s.svc.dispatcher.CheckDuplicateEvent(ctx, s.tenant, "INV-1", types.DunningStage1)
	s.Require().NoError(err)
	s.False(dup)

	result, err := s.svc.dispatcher.PublishIssued(ctx, s.tenant, inv, types.DunningStage1, false)
	s.Require().NoError(err)
	s.True(result.Published)
	s.Equal(s.svc.params.Generator.DispatchKey(testutil.TestTenantID, "INV-1", types.DunningStage1), result.DispatchKey)

	messages := s.GetPubSub().GetMessages(s.eventTopic())
	s.Require().Len(messages, 1)
	msg := messages[0]
	s.Equal(result.MessageID, msg.UUID)
	s.Equal(string(types.EventTypeDunningIssued), msg.Metadata.Get(pubsub.MetadataEventType))
	s.Equal(result.DispatchKey, msg.Metadata.Get(pubsub.MetadataIdempotencyKey))

	ev := s.decode(msg.Payload)
	s.Equal(types.EventTypeDunningIssued, ev.Type)
	s.Equal("EVENT-NOTICE-INV-1", ev.Payload.EventID)
	s.Equal("NOTICE-INV-1", ev.Payload.NoticeRef)
	s.Equal(int64(250), ev.Payload.FeeCents)
	s.Equal(types.ChannelEmail, ev.Payload.Channel)
	s.Nil(ev.Escalation)
	s.Nil(ev.Resolution)

	// a fresh tenant context reads the persisted sent-set
	dup, err = s.svc.dispatcher.CheckDuplicateEvent(ctx, s.NewTenant("TENANT_TEST"), " inv-1 ", types.DunningStage1)
	s.Require().NoError(err)
	s.True(dup)
}

func (s *DispatcherServiceSuite) TestSecondPublishIsSuppressed() {
	inv := s.NewOverdueInvoice("INV-1", 5, 12345)

	_, err := s.svc.dispatcher.PublishIssued(s.GetContext(), s.tenant, inv, types.DunningStage1, false)
	s.Require().NoError(err)

	result, err := s.svc.dispatcher.PublishIssued(s.GetContext(), s.NewTenant(testutil.TestTenantID), inv, types.DunningStage1, false)
	s.Require().NoError(err)
	s.True(result.Duplicate)
	s.False(result.Published)
	s.Len(s.GetPubSub().GetMessages(s.eventTopic()), 1)
}

func (s *DispatcherServiceSuite) TestDryRunPublishesNothing() {
	inv := s.NewOverdueInvoice("INV-1", 5, 12345)

	result, err := s.svc.dispatcher.PublishIssued(s.GetContext(), s.tenant, inv, types.DunningStage1, true)
	s.Require().NoError(err)
	s.True(result.DryRun)
	s.False(result.Published)

	s.Empty(s.GetPubSub().GetMessages(s.eventTopic()))
	s.Nil(s.GetStore().Raw(testutil.TestTenantID, snapshot.DocSentKeys))
}

func (s *DispatcherServiceSuite) TestFailedPublishIsNotRecorded() {
	inv := s.NewOverdueInvoice("INV-1", 5, 12345)
	s.GetPubSub().FailNext(100, errors.New("broker unavailable"))

	_, err := s.svc.dispatcher.PublishIssued(s.GetContext(), s.tenant, inv, types.DunningStage1, false)
	s.Require().Error(err)
	s.True(ierr.IsDispatch(err))
	s.Equal(int(s.GetConfig().Outbox.MaxRetries)+1, s.GetPubSub().Attempts())

	dup, err := s.svc.dispatcher.CheckDuplicateEvent(s.GetContext(), s.tenant, "INV-1", types.DunningStage1)
	s.Require().NoError(err)
	s.False(dup)

	s.GetPubSub().ClearMessages()
	result, err := s.svc.dispatcher.PublishIssued(s.GetContext(), s.tenant, inv, types.DunningStage1, false)
	s.Require().NoError(err)
	s.True(result.Published)
}

func (s *DispatcherServiceSuite) TestTransientFailureIsRetried() {
	inv := s.NewOverdueInvoice("INV-1", 5, 12345)
	s.GetPubSub().FailNext(1, errors.New("leader not available"))

	result, err := s.svc.dispatcher.PublishIssued(s.GetContext(), s.tenant, inv, types.DunningStage1, false)
	s.Require().NoError(err)
	s.True(result.Published)
	s.Equal(2, s.GetPubSub().Attempts())
}

func (s *DispatcherServiceSuite) TestPublishEscalated() {
	inv := s.NewOverdueInvoice("INV-1", 20, 12345)
	inv.Recipient.Email = ""

	result, err := s.svc.dispatcher.PublishEscalated(s.GetContext(), s.tenant, inv, types.DunningStage2, types.DunningStage1, "20 days overdue", false)
	s.Require().NoError(err)

	ev := s.decode(s.GetPubSub().GetMessages(s.eventTopic())[0].Payload)
	s.Equal(types.EventTypeDunningEscalated, ev.Type)
	s.Require().NotNil(ev.Escalation)
	s.Equal(types.DunningStage1, ev.Escalation.FromStage)
	s.Equal("20 days overdue", ev.Escalation.Reason)
	s.Equal(types.ChannelLetter, ev.Payload.Channel)
	s.Equal(result.DispatchKey, s.svc.params.Generator.DispatchKey(testutil.TestTenantID, "INV-1", types.DunningStage2))

	_, err = s.svc.dispatcher.PublishEscalated(s.GetContext(), s.tenant, inv, types.DunningStage2, types.DunningStage3, "down", false)
	s.True(ierr.IsValidation(err))
}

func (s *DispatcherServiceSuite) TestPublishResolved() {
	inv := s.NewOverdueInvoice("INV-1", 20, 12345)
	_, err := s.svc.dispatcher.PublishIssued(s.GetContext(), s.tenant, inv, types.DunningStage2, false)
	s.Require().NoError(err)

	result, err := s.svc.dispatcher.PublishResolved(s.GetContext(), s.tenant, inv, types.DunningStage2, "paid", false)
	s.Require().NoError(err)
	s.True(result.Published)

	messages := s.GetPubSub().GetMessages(s.eventTopic())
	s.Require().Len(messages, 2)
	ev := s.decode(messages[1].Payload)
	s.Equal(types.EventTypeDunningResolved, ev.Type)
	s.Require().NotNil(ev.Resolution)
	s.Equal("paid", ev.Resolution.Reason)
	s.True(s.GetNow().Equal(ev.Resolution.ResolvedAt))

	again, err := s.svc.dispatcher.PublishResolved(s.GetContext(), s.tenant, inv, types.DunningStage2, "paid", false)
	s.Require().NoError(err)
	s.True(again.Duplicate)
}

func (s *DispatcherServiceSuite) TestSentLedgerWriteFailure() {
	inv := s.NewOverdueInvoice("INV-1", 5, 12345)
	s.GetStore().FailPuts(snapshot.DocSentKeys, nil)

	_, err := s.svc.dispatcher.PublishIssued(s.GetContext(), s.tenant, inv, types.DunningStage1, false)
	s.Require().Error(err)
	s.True(ierr.IsPersistence(err))

	dup, err := s.svc.dispatcher.CheckDuplicateEvent(s.GetContext(), s.tenant, "INV-1", types.DunningStage1)
	s.Require().NoError(err)
	s.False(dup)
}
