package app

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/domain"
)

// --- Mocks ---

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) SendPhoto(ctx context.Context, to domain.RecipientID, photo domain.PhotoRef, caption string, withAffordance bool) error {
	args := m.Called(ctx, to, photo, caption, withAffordance)
	return args.Error(0)
}

func (m *MockTransport) SendText(ctx context.Context, to domain.RecipientID, text string) error {
	args := m.Called(ctx, to, text)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyOperator(ctx context.Context, text string) error {
	args := m.Called(ctx, text)
	return args.Error(0)
}

// recordingPublisher keeps every published subject in order.
type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func (p *recordingPublisher) Subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subjects...)
}
