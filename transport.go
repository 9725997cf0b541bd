// Copyright 2024 Matt Schultz <schultz@sent.com>. All rights reserved.
// Use of this source code is governed by an ISC license that can be found in the LICENSE file.

package rcon

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"
)

// DefaultDialTimeout bounds how long [TCPDialer] waits for a connection when no explicit timeout
// is configured.
const DefaultDialTimeout = 30 * time.Second

// Dialer establishes the byte-stream transport a [Client] runs over.
type Dialer interface {
	// Dial connects to the address on the named network.
	Dial(ctx context.Context, network, address string) (net.Conn, error)
}

// TCPDialer implements [Dialer] for plain TCP connections.
type TCPDialer struct {
	// Timeout is the maximum duration for the dial to complete. If zero, no timeout is applied
	// beyond the context deadline.
	Timeout time.Duration

	// LocalAddr is the local address to use when dialing. If nil, a local address is automatically
	// chosen.
	LocalAddr *net.TCPAddr
}

// Dial connects to the address using TCP.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := &net.Dialer{
		Timeout: d.Timeout,
	}
	if d.LocalAddr != nil {
		dialer.LocalAddr = d.LocalAddr
	}
	return dialer.DialContext(ctx, network, address)
}

// DefaultTCPDialer returns a TCP dialer with default settings.
func DefaultTCPDialer() *TCPDialer {
	return &TCPDialer{Timeout: DefaultDialTimeout}
}

// retryWriter writes the whole of every buffer handed to it, resuming after writes that were
// interrupted by a signal. Any other error is returned as is.
type retryWriter struct {
	w io.Writer
}

func (rw retryWriter) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := rw.w.Write(p[written:])
		written += n
		switch {
		case err == nil && n == 0:
			return written, io.ErrShortWrite
		case err == nil:
		case errors.Is(err, syscall.EINTR):
		default:
			return written, err
		}
	}
	return written, nil
}
