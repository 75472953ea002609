package utils

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithShutdown_Signal(t *testing.T) {
	log, hook := test.NewNullLogger()
	ctx, cancel := WithShutdown(context.Background(), log)
	defer cancel()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGINT))

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled by SIGINT")
	}
	require.Eventually(t, func() bool { return hook.LastEntry() != nil }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "interrupt", hook.LastEntry().Data["signal"])
}

func TestWithShutdown_ParentCancel(t *testing.T) {
	log, _ := test.NewNullLogger()
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := WithShutdown(parent, log)
	defer cancel()

	cancelParent()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled with parent")
	}
}

func TestQuit(t *testing.T) {
	log, hook := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	closed := false
	Quit(ctx, "svc", func() error {
		closed = true
		return errors.New("boom")
	}, log)

	assert.True(t, closed)
	assert.Equal(t, "closing svc", hook.LastEntry().Message)
}
