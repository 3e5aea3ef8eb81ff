package email

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNotifyFailure(t *testing.T) {
	n := NewSMTPNotifier("mail", 1025, "noreply@fiapx.local", zap.NewNop())
	var gotAddr string
	var gotMsg []byte
	n.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotMsg = addr, msg
		assert.Equal(t, []string{"user@example.com"}, to)
		return nil
	}

	require.NoError(t, n.NotifyFailure(context.Background(), "user@example.com", "job-1", "u/clip.mp4", "flow building failed"))
	assert.Equal(t, "mail:1025", gotAddr)
	assert.Contains(t, string(gotMsg), "Subject: FIAP X - Slow-motion render failed [Job job-1]")
	assert.Contains(t, string(gotMsg), "flow building failed")
}

func TestNotifyFailure_SendError(t *testing.T) {
	n := NewSMTPNotifier("mail", 1025, "noreply@fiapx.local", zap.NewNop())
	n.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }
	assert.Error(t, n.NotifyFailure(context.Background(), "a@b", "j", "v", "e"))
}
