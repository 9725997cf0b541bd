// Copyright 2024 Matt Schultz <schultz@sent.com>. All rights reserved.
// Use of this source code is governed by an ISC license that can be found in the LICENSE file.

package rcon

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultClientTimeout is the default amount of time allowed for a client to complete one
// authorization or command exchange.
const DefaultClientTimeout = 15 * time.Second

// Packet IDs used by a [Client]. Requests carry PrimaryID. SentinelID is only used for the empty
// request sent after every command, whose response marks the end of the command's output.
const (
	PrimaryID  int32 = 0xDEC0DED
	SentinelID int32 = 0xB1ADED
)

// State is the lifecycle stage of a [Client] session.
type State int32

const (
	// StateDisconnected means the session has no usable transport, either because it was closed or
	// because it suffered a fatal error.
	StateDisconnected State = iota

	// StateConnecting means the transport is attached and authorization has not started yet.
	StateConnecting

	// StateAuthenticating means the authorization exchange is in flight.
	StateAuthenticating

	// StateReady means the session is authorized and accepts commands.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

// Client is an RCON client that manages a single connection to an RCON server. The client allows
// transport over anything that satisfies the [net.Conn] interface, which makes it possible to run
// it over a Unix socket, or to wrap the connection for logging and debugging outside the scope of
// the client.
//
// A session is authorized exactly once and then executes any number of commands. Exchanges are
// strictly sequential; the client serializes concurrent callers, but interleaving commands from
// several goroutines gives no throughput benefit.
//
// Any transport failure, rejected password or desynchronized response makes the session unusable.
// Every later call returns [ErrSessionUnusable] and the caller must connect again.
type Client struct {
	// mu serializes exchanges on the connection.
	mu sync.Mutex

	// state holds the current [State]. It is read without holding mu.
	state atomic.Int32

	// err is the error that made the session unusable, if any.
	err error

	// conn is the underlying connection RCON messages are sent and received over.
	conn net.Conn

	// r and w are the independent read and write sides of conn. Every send is flushed before it
	// returns.
	r *bufio.Reader
	w *bufio.Writer

	// timeout is a limit on the time allowed for one exchange.
	timeout time.Duration

	// logger receives any log output from a client.
	logger *slog.Logger

	// logOutboundAuthPackets enables debug logging of outbound authorization packets, exposing
	// server passwords in plaintext.
	logOutboundAuthPackets bool
}

// NewClient creates and returns a [Client] that uses conn as its transport, configured by the
// provided config. The returned client must be authorized with [Client.Authorize] before it
// accepts commands.
//
// Once a conn is provided to a NewClient call, the conn should not be used outside of the client
// in order to ensure reliable message delivery.
func NewClient(conn net.Conn, config ClientConfig) *Client {
	c := &Client{
		conn:                   conn,
		r:                      bufio.NewReader(conn),
		w:                      bufio.NewWriter(retryWriter{conn}),
		timeout:                config.Timeout,
		logger:                 config.Logger,
		logOutboundAuthPackets: config.LogOutboundAuthPackets,
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// Connect dials host and port using the configured [Dialer] and authorizes the session with
// password. A dial failure wraps [ErrConnect] and is not retried. If authorization fails the
// connection is closed before returning.
func Connect(ctx context.Context, host string, port int, password string, config ClientConfig) (*Client, error) {
	dialer := config.Dialer
	if dialer == nil {
		dialer = &TCPDialer{Timeout: dialTimeout(config.Timeout)}
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := dialer.Dial(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnect, addr, err)
	}

	c := NewClient(conn, config)
	if err := c.Authorize(ctx, password); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// dialTimeout derives the dial limit of the default dialer from the client timeout. Zero selects
// [DefaultDialTimeout]; a negative timeout leaves only the context deadline.
func dialTimeout(timeout time.Duration) time.Duration {
	switch {
	case timeout == 0:
		return DefaultDialTimeout
	case timeout < 0:
		return 0
	}
	return timeout
}

// State returns the current lifecycle stage of the session.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Ready reports whether the session accepts commands.
func (c *Client) Ready() bool {
	return c.State() == StateReady
}

// Close closes the receiving client's underlying connection. The session is unusable afterwards.
// Close does not wait for an exchange in progress; closing the connection unblocks it.
func (c *Client) Close() error {
	err := c.conn.Close()
	c.state.Store(int32(StateDisconnected))

	c.mu.Lock()
	defer c.mu.Unlock()

	// An exchange that completed while the connection was closing may have marked the session ready.
	c.state.Store(int32(StateDisconnected))
	if c.err == nil {
		c.err = net.ErrClosed
	}
	return err
}

// Authorize sends the provided password to the RCON server to authorize the current session. A
// response carrying [AuthFailedID] fails with [ErrAuthenticationFailed]; any other response ID is
// accepted. A session is authorized at most once.
func (c *Client) Authorize(ctx context.Context, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return c.unusable()
	}
	if c.State() != StateConnecting {
		return ErrAlreadyAuthenticated
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.state.Store(int32(StateAuthenticating))

	var resp Packet
	err := c.exchange(ctx, func() error {
		err := c.send(ctx, NewPacket(PrimaryID, PacketTypeAuth, password))
		if err != nil {
			return err
		}
		resp, err = c.receive(ctx)
		return err
	})
	if err != nil {
		return c.fail(err)
	}

	if resp.ID == AuthFailedID {
		return c.fail(ErrAuthenticationFailed)
	}

	c.state.Store(int32(StateReady))
	c.debug(ctx, "session authorized", slog.Int("id", int(resp.ID)))
	return nil
}

// ExecCommand sends cmd to the server and returns the response text.
//
// Servers may split long output across several response packets without marking which one is the
// last. To find the end, the command is immediately followed by an empty request carrying
// [SentinelID]. The server answers requests in order, so the sentinel's response arrives only after
// every fragment of the command's output. Fragments are concatenated in arrival order.
//
// A response with any other ID fails with [ErrUnexpectedResponseID] and leaves the session unusable.
func (c *Client) ExecCommand(ctx context.Context, cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return "", c.unusable()
	}
	if c.State() != StateReady {
		return "", ErrNotReady
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		out       strings.Builder
		fragments int
	)
	err := c.exchange(ctx, func() error {
		if err := c.send(ctx, NewPacket(PrimaryID, PacketTypeExecCommand, cmd)); err != nil {
			return err
		}
		if err := c.send(ctx, NewPacket(SentinelID, PacketTypeExecCommand, "")); err != nil {
			return err
		}

		for {
			resp, err := c.receive(ctx)
			if err != nil {
				return err
			}

			switch resp.ID {
			case PrimaryID:
				out.WriteString(resp.Text())
				fragments++
			case SentinelID:
				return nil
			default:
				return fmt.Errorf("%w: got %d, want %d or %d", ErrUnexpectedResponseID, resp.ID, PrimaryID, SentinelID)
			}
		}
	})
	if err != nil {
		return "", c.fail(err)
	}

	c.debug(ctx, "command complete", slog.Int("fragments", fragments), slog.Int("length", out.Len()))
	return out.String(), nil
}

// exchange runs fn with the connection deadline set from ctx and the client timeout. Cancelling ctx
// while fn is blocked on the connection unblocks it. The caller must hold c.mu.
func (c *Client) exchange(ctx context.Context, fn func() error) error {
	timeout := c.timeout
	if timeout == 0 {
		timeout = DefaultClientTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("rcon: set deadline: %w", err)
	}
	defer interruptOnDone(ctx, c.conn)()

	err := fn()
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	case !deadline.IsZero() && errors.Is(err, os.ErrDeadlineExceeded):
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}

// interruptOnDone unblocks I/O on conn once ctx is done. The returned function stops any later
// interruption and waits for one that is already running, so the deadline it sets never leaks into
// the next exchange.
func interruptOnDone(ctx context.Context, conn net.Conn) (stop func()) {
	var (
		mu      sync.Mutex
		stopped bool
	)
	stopFunc := context.AfterFunc(ctx, func() {
		mu.Lock()
		defer mu.Unlock()
		if !stopped {
			_ = conn.SetDeadline(time.Unix(1, 0))
		}
	})
	return func() {
		stopFunc()
		mu.Lock()
		stopped = true
		mu.Unlock()
	}
}

// send writes packet to the server and flushes it. Writes interrupted by a signal are resumed;
// any other write error is returned.
func (c *Client) send(ctx context.Context, packet Packet) error {
	c.logPacket(ctx, "sending packet", packet)
	if _, err := packet.WriteTo(c.w); err != nil {
		return fmt.Errorf("rcon: send packet: %w", err)
	}
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("rcon: send packet: %w", err)
	}
	return nil
}

// receive reads a single packet from the server.
func (c *Client) receive(ctx context.Context) (Packet, error) {
	var p Packet
	if _, err := p.ReadFrom(c.r); err != nil {
		return Packet{}, fmt.Errorf("rcon: receive packet: %w", err)
	}
	c.logPacket(ctx, "received packet", p)
	return p, nil
}

// fail marks the session unusable because of err and returns err for the caller to report. The
// caller must hold c.mu.
func (c *Client) fail(err error) error {
	c.state.Store(int32(StateDisconnected))
	c.err = err
	if c.logger != nil {
		c.logger.LogAttrs(context.Background(), slog.LevelDebug, "session unusable", slog.String("error", err.Error()))
	}
	return err
}

// unusable returns the error reported by calls made after the session failed. The caller must hold
// c.mu.
func (c *Client) unusable() error {
	return fmt.Errorf("%w: %w", ErrSessionUnusable, c.err)
}

func (c *Client) debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	if c.logger == nil {
		return
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, msg, attrs...)
}

// logPacket sends a log record containing the provided log message and packet to the client's
// logger for handling. When the logger is nil or is not level set for debug records, this function
// is essentially a NOP. If the provided packet is an outbound authorization packet, its body and
// length are obfuscated to prevent leaking a plaintext password into logs.
func (c *Client) logPacket(ctx context.Context, logMsg string, packet Packet) {
	// NOP if the client logger is nil or is not level set for debug log messages.
	if c.logger == nil || !c.logger.Handler().Enabled(ctx, slog.LevelDebug) {
		return
	}

	// Unless the client is explicitly configured to log outbound authorization packets, scrub the
	// password when applicable.
	if packet.Type == PacketTypeAuth && !c.logOutboundAuthPackets {
		packet.Body = []byte{'x', 'x', 'x', 'x', 'x'}
	}

	bs, err := packet.MarshalBinary()
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "failed to marshal packet for logging", slog.String("error", err.Error()))
		return
	}

	c.logger.LogAttrs(ctx, slog.LevelDebug, logMsg,
		slog.Int("id", int(packet.ID)),
		slog.Int("type", int(packet.Type)),
		slog.String("packet", hex.EncodeToString(bs)),
	)
}

// ClientConfig contains settings to control [Client] instances.
type ClientConfig struct {
	// Timeout limits the amount of time a client can spend on one authorization or command
	// exchange. A value of zero will inform the client to use the [DefaultClientTimeout]. A negative
	// value disables the limit, leaving only the deadline of the context passed to each call.
	Timeout time.Duration

	// Dialer establishes the connection in [Connect]. A nil Dialer uses a [TCPDialer] whose timeout
	// follows Timeout: [DefaultDialTimeout] when Timeout is zero, no limit beyond the context when
	// it is negative, and Timeout itself otherwise.
	Dialer Dialer

	// Logger receives log entries from a client.
	Logger *slog.Logger

	// LogOutboundAuthPackets is a flag that must be explicitly enabled when the client is created.
	// This field enables debug logging to include outbound authorization request packets, exposing
	// server passwords in plaintext. When this field is false (the default value,) outbound
	// authorization packets will be sanitized to hide both the password text and packet length.
	//
	// WARNING: Only enable this flag if you are aware of the implications and are willing to accept
	// the risks!
	LogOutboundAuthPackets bool
}
