package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManagerStopsOnFirstError(t *testing.T) {
	var stopped atomic.Int32
	waiter := Func(func(ctx context.Context) error {
		<-ctx.Done()
		stopped.Add(1)
		return nil
	})
	boom := errors.New("listen failed")

	m := NewManager(waiter, waiter)
	m.Add(Func(func(context.Context) error { return boom }))
	assert.Equal(t, 3, m.Len())

	done := make(chan error, 1)
	go func() { done <- m.Start(context.Background()) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not stop")
	}
	assert.Equal(t, int32(2), stopped.Load())
}

func TestManagerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(Func(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}))

	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not stop")
	}
}
