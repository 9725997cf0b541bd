package rcon

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// HeaderSize is the number of bytes following the packet size field that are not part of the
// payload: four for the packet ID and four for the packet type. The packet size field itself is
// not included.
const HeaderSize = 4 + 4

// TerminatorSize is the number of null bytes that terminate every outbound payload. The protocol
// treats the body as a null-terminated string followed by an empty null-terminated string, so even
// an empty body carries both bytes.
const TerminatorSize = 2

const (
	// PacketTypeAuth represents a client authorization request packet. The body carries the server
	// password.
	PacketTypeAuth = 3

	// PacketTypeAuthResponse represents a server authorization response packet. It shares its value
	// with [PacketTypeExecCommand].
	PacketTypeAuthResponse = 2

	// PacketTypeExecCommand represents a client request packet that contains a command to be executed
	// by the server.
	PacketTypeExecCommand = 2

	// PacketTypeResponseValue represents a server response packet that contains the output of a
	// command.
	PacketTypeResponseValue = 0
)

// AuthFailedID is the packet ID a server answers an authorization request with when the password
// was rejected.
const AuthFailedID = -1

var terminator = [TerminatorSize]byte{}

// Packet is a singular RCON protocol packet, either as a request from a client or a response from
// a server.
type Packet struct {
	// ID correlates a response with the request that produced it. Servers answer a rejected
	// authorization with [AuthFailedID].
	ID int32

	// Type indicates the purpose of the packet.
	Type int32

	// Body holds the payload text. For outbound packets it excludes the terminator, which is added
	// during encoding. For decoded packets it holds the payload exactly as it was received,
	// terminator included; use [Packet.Text] to extract the text.
	Body []byte
}

// NewPacket returns a [Packet] carrying text as its body.
func NewPacket(id, typ int32, text string) Packet {
	return Packet{ID: id, Type: typ, Body: []byte(text)}
}

// size returns the value of the size field that precedes the encoded packet.
func (p Packet) size() int32 {
	return int32(HeaderSize + len(p.Body) + TerminatorSize)
}

// MarshalBinary encodes the receiving [Packet] into binary form and returns the result. This
// satisfies the [encoding.BinaryMarshaler] interface.
func (p Packet) MarshalBinary() ([]byte, error) {
	size := p.size()

	b := make([]byte, 0, 4+int(size))
	b = binary.LittleEndian.AppendUint32(b, uint32(size))
	b = binary.LittleEndian.AppendUint32(b, uint32(p.ID))
	b = binary.LittleEndian.AppendUint32(b, uint32(p.Type))
	b = append(b, p.Body...)
	b = append(b, terminator[:]...)

	return b, nil
}

// WriteTo writes a binary representation of the packet to [io.Writer] w. This method satisfies the
// [io.WriterTo] interface.
func (p Packet) WriteTo(w io.Writer) (int64, error) {
	bs, err := p.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(bs)

	return int64(n), err
}

// UnmarshalBinary decodes the binary encoded packet b into the receiving [Packet]. Bytes left over
// after the declared packet size are an error. This satisfies the [encoding.BinaryUnmarshaler]
// interface.
func (p *Packet) UnmarshalBinary(b []byte) error {
	r := bytes.NewReader(b)
	if _, err := p.ReadFrom(r); err != nil {
		return err
	}
	if r.Len() > 0 {
		return fmt.Errorf("rcon: %d trailing bytes after packet", r.Len())
	}
	return nil
}

// ReadFrom reads a binary representation of a packet into the receiving [Packet] instance. This
// method satisfies the [io.ReaderFrom] interface.
//
// A stream that ends before the declared packet size is reached fails with [ErrTruncatedStream].
// A stream that ends cleanly before the first byte of a packet returns [io.EOF].
func (p *Packet) ReadFrom(r io.Reader) (int64, error) {
	var hdr [4 + HeaderSize]byte

	n, err := io.ReadFull(r, hdr[:])
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return int64(n), fmt.Errorf("%w: header: %w", ErrTruncatedStream, err)
		}
		return int64(n), err
	}

	size := int32(binary.LittleEndian.Uint32(hdr[0:4]))
	if size < HeaderSize {
		return int64(n), fmt.Errorf("%w: %d", ErrInvalidPacketSize, size)
	}
	p.ID = int32(binary.LittleEndian.Uint32(hdr[4:8]))
	p.Type = int32(binary.LittleEndian.Uint32(hdr[8:12]))

	// Copy rather than preallocate so that a garbage size on a short stream fails fast without
	// reserving the declared amount of memory.
	want := int64(size - HeaderSize)
	var body bytes.Buffer
	m, err := io.CopyN(&body, r, want)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return int64(n) + m, fmt.Errorf("%w: read %d of %d payload bytes: %w", ErrTruncatedStream, m, want, err)
	}
	p.Body = body.Bytes()

	return int64(n) + m, nil
}

// Text returns the packet body as a string. Invalid UTF-8 sequences are replaced with U+FFFD and
// trailing whitespace and null bytes, including the protocol terminator, are trimmed.
func (p Packet) Text() string {
	s := string(bytes.ToValidUTF8(p.Body, []byte(string(unicode.ReplacementChar))))
	return strings.TrimRightFunc(s, func(r rune) bool {
		return r == 0 || unicode.IsSpace(r)
	})
}

// EqualTo determines if the provided Packet content matches the receiving Packet content.
func (p Packet) EqualTo(p2 Packet) bool {
	switch {
	case p.ID != p2.ID:
		return false
	case p.Type != p2.Type:
		return false
	case !bytes.Equal(p.Body, p2.Body):
		return false
	}
	return true
}

// Clone returns a deep copy of the receiving Packet.
func (p Packet) Clone() Packet {
	c := p
	if p.Body != nil {
		c.Body = bytes.Clone(p.Body)
	}
	return c
}
