package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/dunning/internal/notification"
	"github.com/stretchr/testify/mock"
)

// MockSender is a testify mock of notification.Sender
type MockSender struct {
	mock.Mock
}

var _ notification.Sender = (*MockSender)(nil)

func (m *MockSender) Publish(ctx context.Context, notice *notification.Notice, dryRun bool) (*notification.SendResult, error) {
	args := m.Called(ctx, notice, dryRun)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notification.SendResult), args.Error(1)
}

// RecordingSender accepts every notice and keeps the ones that were not
// dry runs
type RecordingSender struct {
	mu      sync.Mutex
	notices []*notification.Notice
	dryRuns int
}

var _ notification.Sender = (*RecordingSender)(nil)

func NewRecordingSender() *RecordingSender {
	return &RecordingSender{}
}

func (s *RecordingSender) Publish(_ context.Context, notice *notification.Notice, dryRun bool) (*notification.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dryRun {
		s.dryRuns++
		return &notification.SendResult{Success: true, DryRun: true}, nil
	}
	s.notices = append(s.notices, notice)
	return &notification.SendResult{Success: true, ProviderMessageID: "msg-" + notice.NoticeID}, nil
}

func (s *RecordingSender) Notices() []*notification.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*notification.Notice{}, s.notices...)
}

func (s *RecordingSender) DryRuns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dryRuns
}

func (s *RecordingSender) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = nil
	s.dryRuns = 0
}
