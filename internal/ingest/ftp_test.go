package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harborview/claims-triage/internal/config"
)

func TestHostPort(t *testing.T) {
	assert.Equal(t, "drops.example.com:21", hostPort("drops.example.com"))
	assert.Equal(t, "drops.example.com:2121", hostPort("drops.example.com:2121"))
	assert.Equal(t, "10.0.0.5:21", hostPort("10.0.0.5"))
}

func TestFTPPoller_Defaults(t *testing.T) {
	p := NewFTPPoller(config.FTPConfig{}, t.TempDir(), &stubProcessor{})
	assert.Equal(t, 5*time.Minute, p.pollInterval())
	assert.Equal(t, 30*time.Second, p.timeout())

	p = NewFTPPoller(config.FTPConfig{PollIntervalSecs: 60, TimeoutSecs: 5}, t.TempDir(), &stubProcessor{})
	assert.Equal(t, time.Minute, p.pollInterval())
	assert.Equal(t, 5*time.Second, p.timeout())
}

func TestPoll_DialFailure(t *testing.T) {
	p := NewFTPPoller(config.FTPConfig{
		Host:        "127.0.0.1:1",
		TimeoutSecs: 1,
	}, t.TempDir(), &stubProcessor{})

	err := p.poll(context.Background(), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp dial")
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	p := NewFTPPoller(config.FTPConfig{
		Host:             "127.0.0.1:1",
		PollIntervalSecs: 3600,
	}, t.TempDir(), &stubProcessor{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancel")
	}
}
