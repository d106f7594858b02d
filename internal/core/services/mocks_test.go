package services

import (
	"context"
	"sync"
	"time"

	"fleetpulse/internal/core/domain"

	"github.com/stretchr/testify/mock"
)

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) IsConnected() bool {
	return m.Called().Bool(0)
}

func (m *mockTransport) Send(event string, data interface{}) error {
	return m.Called(event, data).Error(0)
}

func connectedTransport() *mockTransport {
	t := &mockTransport{}
	t.On("IsConnected").Return(true)
	t.On("Send", mock.Anything, mock.Anything).Return(nil)
	return t
}

func disconnectedTransport() *mockTransport {
	t := &mockTransport{}
	t.On("IsConnected").Return(false)
	return t
}

// sent returns the payloads passed to Send for event, in order.
func (m *mockTransport) sent(event string) []interface{} {
	var out []interface{}
	for _, c := range m.Calls {
		if c.Method == "Send" && c.Arguments.String(0) == event {
			out = append(out, c.Arguments.Get(1))
		}
	}
	return out
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) RequestPermission(ctx context.Context) (domain.Permission, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.Permission), args.Error(1)
}

func (m *mockNotifier) Show(ctx context.Context, n domain.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func grantingNotifier() *mockNotifier {
	n := &mockNotifier{}
	n.On("RequestPermission", mock.Anything).Return(domain.PermissionGranted, nil)
	n.On("Show", mock.Anything, mock.Anything).Return(nil)
	return n
}

func (m *mockNotifier) shown() []domain.Notification {
	var out []domain.Notification
	for _, c := range m.Calls {
		if c.Method == "Show" {
			out = append(out, c.Arguments.Get(1).(domain.Notification))
		}
	}
	return out
}

type recordingSound struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingSound) Play(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return nil
}

func (r *recordingSound) played() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
