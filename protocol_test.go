// Copyright 2024 Matt Schultz <schultz@sent.com>. All rights reserved.
// Use of this source code is governed by an ISC license that can be found in the LICENSE file.

package rcon_test

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"io"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schultz-is/rconsh"
)

func TestPacketBinaryFormatting(t *testing.T) {
	ps := []rcon.Packet{
		{}, // Empty packet
		rcon.NewPacket(rcon.PrimaryID, rcon.PacketTypeAuth, "password"),       // Authorization request
		rcon.NewPacket(rcon.PrimaryID, rcon.PacketTypeAuthResponse, ""),       // Successful authorization response
		rcon.NewPacket(rcon.AuthFailedID, rcon.PacketTypeAuthResponse, ""),    // Unsuccessful authorization response
		rcon.NewPacket(rcon.PrimaryID, rcon.PacketTypeExecCommand, "list"),    // Command request
		rcon.NewPacket(rcon.SentinelID, rcon.PacketTypeExecCommand, ""),       // End of response marker request
		rcon.NewPacket(rcon.PrimaryID, rcon.PacketTypeResponseValue, "héllo"), // Multi-byte command response
		{math.MaxInt32, math.MaxInt32, make([]byte, 8192)},                    // Larger than servers accept, non-standard type field
	}

	for _, p := range ps {
		b, err := p.MarshalBinary()
		require.NoError(t, err)

		// Ensure MarshalBinary is a pure function.
		b2, err := p.MarshalBinary()
		require.NoError(t, err)
		require.Equal(t, b, b2)

		var buf bytes.Buffer
		n, err := p.WriteTo(&buf)
		require.NoError(t, err)
		assert.Equal(t, int64(len(b)), n)
		assert.Equal(t, b, buf.Bytes())

		// The size field covers everything after itself.
		size := int32(binary.LittleEndian.Uint32(b[0:4]))
		assert.Equal(t, int32(rcon.HeaderSize+len(p.Body)+rcon.TerminatorSize), size)
		assert.Equal(t, len(b)-4, int(size))
		assert.Equal(t, []byte{0, 0}, b[len(b)-2:])

		var p2 rcon.Packet
		require.NoError(t, p2.UnmarshalBinary(b))

		var p3 rcon.Packet
		n3, err := p3.ReadFrom(&buf)
		require.NoError(t, err)
		assert.Equal(t, n, n3)

		// Decoded bodies keep the terminator the encoder appended.
		want := rcon.Packet{ID: p.ID, Type: p.Type, Body: append(bytes.Clone(p.Body), 0, 0)}
		if diff := cmp.Diff(want, p2); diff != "" {
			t.Fatalf("UnmarshalBinary mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(want, p3); diff != "" {
			t.Fatalf("ReadFrom mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestPacketRoundTripText(t *testing.T) {
	texts := []string{
		"",
		"list",
		"say hello world",
		"There are 2 of a max of 20 players online: alice, bob",
		"ünïcödé ✓",
		strings.Repeat("x", 4096),
	}

	for _, s := range texts {
		for _, typ := range []int32{rcon.PacketTypeAuth, rcon.PacketTypeExecCommand, rcon.PacketTypeResponseValue} {
			b, err := rcon.NewPacket(42, typ, s).MarshalBinary()
			require.NoError(t, err)

			var p rcon.Packet
			require.NoError(t, p.UnmarshalBinary(b))
			assert.Equal(t, int32(42), p.ID)
			assert.Equal(t, typ, p.Type)
			assert.Equal(t, s, p.Text())
			assert.Equal(t, int32(8+len(s)+2), int32(binary.LittleEndian.Uint32(b[0:4])))
		}
	}
}

func TestPacketText(t *testing.T) {
	cases := []struct {
		name string
		body []byte
		want string
	}{
		{"empty", nil, ""},
		{"terminator only", []byte{0, 0}, ""},
		{"text with terminator", []byte("pong\x00\x00"), "pong"},
		{"trailing whitespace", []byte("pong \r\n\x00\x00"), "pong"},
		{"leading whitespace kept", []byte("  pong\x00\x00"), "  pong"},
		{"interior newline kept", []byte("a\nb\x00\x00"), "a\nb"},
		{"invalid utf-8", []byte{'o', 'k', 0xff, 0xfe, 0, 0}, "ok�"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := rcon.Packet{Body: tc.body}
			assert.Equal(t, tc.want, p.Text())
		})
	}
}

func TestPacketDecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		hex  string
		want error
	}{
		{"negative packet size", "d6ffffff1111111122222222", rcon.ErrInvalidPacketSize},
		{"packet size smaller than header", "070000001111111122222222", rcon.ErrInvalidPacketSize},
		{"short header", "0a00000011", rcon.ErrTruncatedStream},
		{"short payload", "0e000000111111112222222261", rcon.ErrTruncatedStream},
		{"missing terminator", "0a0000001111111122222222", rcon.ErrTruncatedStream},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := hex.DecodeString(tc.hex)
			require.NoError(t, err)

			var p rcon.Packet
			err = p.UnmarshalBinary(b)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("trailing bytes", func(t *testing.T) {
		b, err := hex.DecodeString("0a00000011111111222222220000ff")
		require.NoError(t, err)

		var p rcon.Packet
		assert.Error(t, p.UnmarshalBinary(b))
	})

	t.Run("clean eof", func(t *testing.T) {
		var p rcon.Packet
		_, err := p.ReadFrom(bytes.NewReader(nil))
		assert.ErrorIs(t, err, io.EOF)
		assert.NotErrorIs(t, err, rcon.ErrTruncatedStream)
	})

	t.Run("huge declared size on short stream", func(t *testing.T) {
		b, err := hex.DecodeString("ffffff7f1111111122222222abcd")
		require.NoError(t, err)

		var p rcon.Packet
		n, err := p.ReadFrom(bytes.NewReader(b))
		assert.ErrorIs(t, err, rcon.ErrTruncatedStream)
		assert.Equal(t, int64(len(b)), n)
	})

	t.Run("payload without terminator is accepted", func(t *testing.T) {
		b, err := hex.DecodeString("0c000000111111112222222261626364")
		require.NoError(t, err)

		var p rcon.Packet
		require.NoError(t, p.UnmarshalBinary(b))
		assert.Equal(t, "abcd", p.Text())
	})
}

func TestPacketEqualTo(t *testing.T) {
	p := rcon.Packet{}
	assert.True(t, p.EqualTo(p))

	p = rcon.Packet{
		ID:   12345,
		Type: rcon.PacketTypeResponseValue,
		Body: []byte("some command response value goes here..."),
	}
	assert.True(t, p.EqualTo(p))

	p2 := p.Clone()
	assert.True(t, p.EqualTo(p2))

	p2.Body[0] = 'S'
	assert.False(t, p.EqualTo(p2), "clone must not share its body with the original")

	p2 = p.Clone()
	p2.ID = p.ID - 1
	assert.False(t, p.EqualTo(p2))

	p2.ID = p.ID
	p2.Type = p.Type + 1
	assert.False(t, p.EqualTo(p2))

	p2.Type = p.Type
	p2.Body = append(p2.Body, 'X')
	assert.False(t, p.EqualTo(p2))
}

func BenchmarkMarshalBinary(b *testing.B) {
	bodySizes := []int{0, 5, 10, 15, 25, 125, 250, 500, 1000, 2000, 4096}

	for _, bodySize := range bodySizes {
		b.Run(
			strconv.Itoa(bodySize),
			func(b *testing.B) {
				for n := 0; n < b.N; n++ {
					p := rcon.Packet{
						Body: make([]byte, bodySize),
					}
					bs, err := p.MarshalBinary()
					if err != nil {
						b.Fatal(err)
					}
					b.SetBytes(int64(len(bs)))
				}
			},
		)
	}
}
