package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendDueReminders(ctx context.Context, date time.Time) (int, error) {
	args := m.Called(ctx, date)
	return args.Int(0), args.Error(1)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New("every morning", &MockSender{}, quietLogger())
	assert.Error(t, err)
}

func TestRunOnce(t *testing.T) {
	date := time.Date(2026, 4, 30, 9, 0, 0, 0, time.UTC)

	t.Run("sends for today", func(t *testing.T) {
		sender := &MockSender{}
		sender.On("SendDueReminders", mock.Anything, date).Return(2, nil).Once()

		s, err := New("0 9 * * *", sender, quietLogger())
		require.NoError(t, err)
		s.now = func() time.Time { return date }
		s.RunOnce()

		sender.AssertExpectations(t)
	})

	t.Run("errors are logged not raised", func(t *testing.T) {
		sender := &MockSender{}
		sender.On("SendDueReminders", mock.Anything, date).Return(0, errors.New("db down")).Once()

		s, err := New("@daily", sender, quietLogger())
		require.NoError(t, err)
		s.now = func() time.Time { return date }
		assert.NotPanics(t, s.RunOnce)

		sender.AssertExpectations(t)
	})
}

func TestStartStop(t *testing.T) {
	s, err := New("0 9 * * *", &MockSender{}, quietLogger())
	require.NoError(t, err)
	s.Start()
	s.Stop()
}
