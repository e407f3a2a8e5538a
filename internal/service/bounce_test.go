package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/dunning/internal/domain/bounce"
	"github.com/flexprice/dunning/internal/domain/snapshot"
	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/flexprice/dunning/internal/testutil"
	"github.com/flexprice/dunning/internal/types"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/suite"
)

type BounceServiceSuite struct {
	testutil.BaseServiceTestSuite
	svc       *dunningServices
	recipient string
}

func TestBounceService(t *testing.T) {
	suite.Run(t, new(BounceServiceSuite))
}

func (s *BounceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.svc = newDunningServices(&s.BaseServiceTestSuite)
	s.recipient = bounce.HashRecipient("debtor@example.com")
}

func (s *BounceServiceSuite) event(id string, typ types.BounceType, offset time.Duration) *bounce.Event {
	return &bounce.Event{
		EventID:       id,
		TenantID:      testutil.TestTenantID,
		RecipientHash: s.recipient,
		Type:          typ,
		Reason:        "mailbox unavailable",
		OccurredAt:    s.GetNow().Add(offset),
	}
}

func (s *BounceServiceSuite) enqueue(events ...*bounce.Event) {
	added, err := s.svc.bounces.Enqueue(s.GetContext(), s.NewTenant(testutil.TestTenantID), events...)
	s.Require().NoError(err)
	s.Require().Equal(len(events), added)
}

func (s *BounceServiceSuite) process(dryRun bool) *BounceResult {
	result, err := s.svc.bounces.Process(s.GetContext(), s.NewTenant(testutil.TestTenantID), dryRun)
	s.Require().NoError(err)
	return result
}

func (s *BounceServiceSuite) actions(result *BounceResult) []types.BounceAction {
	out := make([]types.BounceAction, 0, len(result.Actions))
	for _, a := range result.Actions {
		out = append(out, a.Action)
	}
	return out
}

func (s *BounceServiceSuite) blocked() bool {
	ok, err := s.svc.bounces.IsBlocked(s.GetContext(), s.NewTenant(testutil.TestTenantID), s.recipient)
	s.Require().NoError(err)
	return ok
}

func (s *BounceServiceSuite) TestThreeSoftBouncesWithinWindowPromote() {
	s.enqueue(
		s.event("b1", types.BounceTypeSoft, 0),
		s.event("b2", types.BounceTypeSoft, 35*time.Hour),
		s.event("b3", types.BounceTypeSoft, 71*time.Hour),
	)

	result := s.process(false)
	s.Equal([]types.BounceAction{
		types.BounceActionRecordSoft,
		types.BounceActionRecordSoft,
		types.BounceActionPromoteHard,
	}, s.actions(result))
	s.Equal([]string{"b1", "b2", "b3"}, result.ProcessedEventIDs)
	s.Equal(types.BlockStatusHard, result.Actions[2].Status)
	s.True(s.blocked())
}

func (s *BounceServiceSuite) TestSpreadSoftBouncesDoNotPromote() {
	s.enqueue(
		s.event("b1", types.BounceTypeSoft, 0),
		s.event("b2", types.BounceTypeSoft, 37*time.Hour),
		s.event("b3", types.BounceTypeSoft, 74*time.Hour),
	)

	result := s.process(false)
	s.Equal([]types.BounceAction{
		types.BounceActionRecordSoft,
		types.BounceActionRecordSoft,
		types.BounceActionRecordSoft,
	}, s.actions(result))
	s.Equal(2, result.Actions[2].Attempts)
	s.False(s.blocked())
}

func (s *BounceServiceSuite) TestEventsAreAppliedInTimeOrder() {
	s.enqueue(
		s.event("late", types.BounceTypeSoft, 71*time.Hour),
		s.event("early", types.BounceTypeSoft, 0),
		s.event("mid", types.BounceTypeSoft, 30*time.Hour),
	)

	result := s.process(false)
	s.Equal([]string{"early", "mid", "late"}, result.ProcessedEventIDs)
	s.Equal(types.BounceActionPromoteHard, result.Actions[2].Action)
}

func (s *BounceServiceSuite) TestHardBounceIsTerminal() {
	s.enqueue(s.event("h1", types.BounceTypeHard, 0))
	result := s.process(false)
	s.Equal([]types.BounceAction{types.BounceActionBlockHard}, s.actions(result))

	s.enqueue(s.event("s1", types.BounceTypeSoft, 200*time.Hour))
	result = s.process(false)
	s.Equal([]types.BounceAction{types.BounceActionAlreadyHard}, s.actions(result))
	s.Equal(types.BlockStatusHard, result.Actions[0].Status)
	s.True(s.blocked())
}

func (s *BounceServiceSuite) TestRerunIsNoop() {
	events := []*bounce.Event{
		s.event("b1", types.BounceTypeSoft, 0),
		s.event("b2", types.BounceTypeHard, time.Hour),
	}
	s.enqueue(events...)
	first := s.process(false)
	s.Len(first.Actions, 2)
	blocklist := s.GetStore().Raw(testutil.TestTenantID, snapshot.DocBounce)
	s.Require().NotNil(blocklist)

	// put the same batch back into the inbox, bypassing Enqueue
	t := s.NewTenant(testutil.TestTenantID)
	s.Require().NoError(t.Inbox.Put(s.GetContext(), &bounce.Inbox{Events: events}))

	second := s.process(false)
	s.Empty(second.Actions)
	s.Empty(second.ProcessedEventIDs)
	s.Equal(blocklist, s.GetStore().Raw(testutil.TestTenantID, snapshot.DocBounce))

	inbox, err := s.NewTenant(testutil.TestTenantID).Inbox.Get(s.GetContext())
	s.Require().NoError(err)
	s.Empty(inbox.Events)
}

func (s *BounceServiceSuite) TestDryRunPersistsNothing() {
	s.enqueue(s.event("h1", types.BounceTypeHard, 0))
	inboxBefore := s.GetStore().Raw(testutil.TestTenantID, snapshot.DocInbox)

	result := s.process(true)
	s.True(result.DryRun)
	s.Equal([]types.BounceAction{types.BounceActionBlockHard}, s.actions(result))

	s.Nil(s.GetStore().Raw(testutil.TestTenantID, snapshot.DocBounce))
	s.Equal(inboxBefore, s.GetStore().Raw(testutil.TestTenantID, snapshot.DocInbox))
	s.False(s.blocked())
}

func (s *BounceServiceSuite) TestCrashBetweenWritesIsRepaired() {
	s.enqueue(s.event("h1", types.BounceTypeHard, 0))

	s.GetStore().FailPuts(snapshot.DocInbox, nil)
	_, err := s.svc.bounces.Process(s.GetContext(), s.NewTenant(testutil.TestTenantID), false)
	s.Require().Error(err)
	s.True(ierr.IsPersistence(err))
	s.True(s.blocked())
	s.GetStore().RestorePuts()

	result := s.process(false)
	s.Empty(result.Actions)

	inbox, err := s.NewTenant(testutil.TestTenantID).Inbox.Get(s.GetContext())
	s.Require().NoError(err)
	s.Empty(inbox.Events)
}

func (s *BounceServiceSuite) TestEventsQueuedDuringProcessSurvive() {
	s.enqueue(s.event("h1", types.BounceTypeHard, 0))

	// the reconciler loads the inbox, then a consumer queues another event
	reconciler := s.NewTenant(testutil.TestTenantID)
	_, err := reconciler.Inbox.Get(s.GetContext())
	s.Require().NoError(err)
	s.enqueue(s.event("s1", types.BounceTypeSoft, time.Hour))

	result, err := s.svc.bounces.Process(s.GetContext(), reconciler, false)
	s.Require().NoError(err)
	s.Equal([]string{"h1"}, result.ProcessedEventIDs)

	inbox, err := s.NewTenant(testutil.TestTenantID).Inbox.Get(s.GetContext())
	s.Require().NoError(err)
	s.Require().Len(inbox.Events, 1)
	s.Equal("s1", inbox.Events[0].EventID)

	next := s.process(false)
	s.Equal([]string{"s1"}, next.ProcessedEventIDs)
	inbox, err = s.NewTenant(testutil.TestTenantID).Inbox.Get(s.GetContext())
	s.Require().NoError(err)
	s.Empty(inbox.Events)
}

func (s *BounceServiceSuite) TestEnqueueSkipsKnownEvents() {
	s.enqueue(s.event("b1", types.BounceTypeSoft, 0))

	added, err := s.svc.bounces.Enqueue(s.GetContext(), s.NewTenant(testutil.TestTenantID), s.event("b1", types.BounceTypeSoft, 0))
	s.Require().NoError(err)
	s.Zero(added)

	s.process(false)
	added, err = s.svc.bounces.Enqueue(s.GetContext(), s.NewTenant(testutil.TestTenantID), s.event("b1", types.BounceTypeSoft, 0))
	s.Require().NoError(err)
	s.Zero(added)
}

func (s *BounceServiceSuite) TestEnqueueValidation() {
	t := s.NewTenant(testutil.TestTenantID)

	raw := s.event("b1", types.BounceTypeSoft, 0)
	raw.RecipientHash = "debtor@example.com"
	_, err := s.svc.bounces.Enqueue(s.GetContext(), t, raw)
	s.True(ierr.IsValidation(err))

	unknown := s.event("b2", types.BounceType("complaint"), 0)
	_, err = s.svc.bounces.Enqueue(s.GetContext(), t, unknown)
	s.True(ierr.IsValidation(err))

	foreign := s.event("b3", types.BounceTypeSoft, 0)
	foreign.TenantID = "other_tenant"
	_, err = s.svc.bounces.Enqueue(s.GetContext(), t, foreign)
	s.True(ierr.IsValidation(err))

	s.Nil(s.GetStore().Raw(testutil.TestTenantID, snapshot.DocInbox))
}

func (s *BounceServiceSuite) TestConsumerQueuesMessages() {
	consumer := NewBounceConsumer(s.svc.params, s.svc.bounces)

	payload, err := jsoniter.Marshal(s.event("b1", types.BounceTypeHard, 0))
	s.Require().NoError(err)
	s.Require().NoError(consumer.HandleMessage(message.NewMessage("msg-1", payload)))

	inbox, err := s.NewTenant(testutil.TestTenantID).Inbox.Get(s.GetContext())
	s.Require().NoError(err)
	s.Require().Len(inbox.Events, 1)
	s.Equal("b1", inbox.Events[0].EventID)

	err = consumer.HandleMessage(message.NewMessage("msg-2", []byte("{not json")))
	s.True(ierr.IsValidation(err))

	for i := 0; i < 2; i++ {
		s.Require().NoError(consumer.HandleMessage(message.NewMessage(fmt.Sprintf("msg-%d", i), payload)))
	}
	inbox, err = s.NewTenant(testutil.TestTenantID).Inbox.Get(s.GetContext())
	s.Require().NoError(err)
	s.Len(inbox.Events, 1)
}
