// Copyright 2024 Matt Schultz <schultz@sent.com>. All rights reserved.
// Use of this source code is governed by an ISC license that can be found in the LICENSE file.

package rcon

import "errors"

// Errors returned by the codec and the client. Every error returned from this package that falls
// into one of these categories wraps the matching value, so callers can use [errors.Is].
var (
	// ErrConnect indicates the transport to the server could not be established.
	ErrConnect = errors.New("rcon: connect failed")

	// ErrAuthenticationFailed indicates the server rejected the password, or that it does not speak
	// the protocol.
	ErrAuthenticationFailed = errors.New("rcon: authentication failed")

	// ErrTruncatedStream indicates the stream ended before a whole packet was read.
	ErrTruncatedStream = errors.New("rcon: truncated stream")

	// ErrInvalidPacketSize indicates a packet declared a size too small to hold its header.
	ErrInvalidPacketSize = errors.New("rcon: invalid packet size")

	// ErrUnexpectedResponseID indicates a response packet matched neither the request nor the
	// end-of-response marker. The stream is desynchronized.
	ErrUnexpectedResponseID = errors.New("rcon: unexpected response id")

	// ErrSessionUnusable is returned by every call made after the session suffered a fatal error.
	// It wraps the error that broke the session.
	ErrSessionUnusable = errors.New("rcon: session unusable")

	// ErrNotReady indicates a command was issued before the session was authorized.
	ErrNotReady = errors.New("rcon: session not authorized")

	// ErrAlreadyAuthenticated indicates authorization was attempted twice on one session.
	ErrAlreadyAuthenticated = errors.New("rcon: session already authenticated")
)
