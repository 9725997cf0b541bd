// Copyright 2024 Matt Schultz <schultz@sent.com>. All rights reserved.
// Use of this source code is governed by an ISC license that can be found in the LICENSE file.

package rcon

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// deadlineConn counts SetDeadline calls. The first call blocks until release is closed.
type deadlineConn struct {
	net.Conn
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newDeadlineConn() *deadlineConn {
	return &deadlineConn{entered: make(chan struct{}), release: make(chan struct{})}
}

func (c *deadlineConn) SetDeadline(time.Time) error {
	if c.calls.Add(1) == 1 {
		close(c.entered)
		<-c.release
	}
	return nil
}

func TestInterruptOnDone(t *testing.T) {
	t.Run("interrupts once the context is done", func(t *testing.T) {
		conn := newDeadlineConn()
		close(conn.release)

		ctx, cancel := context.WithCancel(context.Background())
		stop := interruptOnDone(ctx, conn)
		cancel()
		<-conn.entered
		stop()

		assert.Equal(t, int32(1), conn.calls.Load())
	})

	t.Run("stop waits for a running interruption", func(t *testing.T) {
		conn := newDeadlineConn()

		ctx, cancel := context.WithCancel(context.Background())
		stop := interruptOnDone(ctx, conn)
		cancel()
		<-conn.entered

		stopped := make(chan struct{})
		go func() {
			stop()
			close(stopped)
		}()

		select {
		case <-stopped:
			t.Fatal("stop returned while the deadline was still being set")
		case <-time.After(50 * time.Millisecond):
		}

		close(conn.release)
		<-stopped
		assert.Equal(t, int32(1), conn.calls.Load())
	})

	t.Run("no interruption after stop", func(t *testing.T) {
		conn := newDeadlineConn()
		close(conn.release)

		ctx, cancel := context.WithCancel(context.Background())
		stop := interruptOnDone(ctx, conn)
		stop()
		cancel()

		time.Sleep(20 * time.Millisecond)
		assert.Zero(t, conn.calls.Load())
	})
}
