// Package protocol implements the framing of the Teeworlds 0.6 / DDNet connectionless
// server info exchange: the "gie3" request and the "inf3", "iext" and "iex+" responses.
package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

const (
	// HeaderSize is the length of the connless packet header preceding the message.
	HeaderSize = 6

	// MagicSize is the length of the 0xff padding plus the 4-byte packet type.
	MagicSize = 8

	// MinFrameSize is the shortest datagram that can carry a response.
	MinFrameSize = HeaderSize + MagicSize

	// MaxPacketSize is the largest datagram a Teeworlds server sends.
	MaxPacketSize = 1400
)

var (
	// ErrTruncated is returned for frames shorter than the fixed header or with an unterminated token.
	ErrTruncated = errors.New("truncated frame")

	// ErrMalformedFrame is returned when a recognized frame carries a non-decimal token or packet number.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrForeign is returned for datagrams that are not server info responses.
	// Callers ignore such traffic.
	ErrForeign = errors.New("foreign packet")
)

var (
	padding = []byte{0xff, 0xff, 0xff, 0xff}

	typeGetInfo          = []byte("gie3")
	typeInfo             = []byte("inf3")
	typeInfoExtended     = []byte("iext")
	typeInfoExtendedMore = []byte("iex+")
)

// Variant identifies the response packet type.
type Variant uint8

const (
	// Vanilla is the single datagram "inf3" response of Teeworlds 0.6 servers.
	Vanilla Variant = iota

	// Extended is the first "iext" datagram of a DDNet response.
	Extended

	// ExtendedMore is a follow-up "iex+" datagram of a DDNet response carrying more players.
	ExtendedMore
)

// String returns the wire name of the variant.
func (v Variant) String() string {
	switch v {
	case Vanilla:
		return string(typeInfo)
	case Extended:
		return string(typeInfoExtended)
	case ExtendedMore:
		return string(typeInfoExtendedMore)
	default:
		return "unknown"
	}
}

// IsExtended reports whether the variant belongs to a possibly fragmented DDNet response.
func (v Variant) IsExtended() bool {
	return v == Extended || v == ExtendedMore
}

// Frame is a decoded response datagram.
type Frame struct {
	// Payload is the field sequence following the token (and the packet number for iex+).
	Payload []byte

	// Token is the value echoed by the server.
	Token Token

	Variant Variant

	// PacketIndex is 0 for inf3 and iext, the packet number for iex+.
	PacketIndex uint8

	// PacketCount is 1 for inf3. Extended responses do not announce a total and carry 0:
	// the response is complete once the player list reaches num_clients.
	PacketCount uint8
}

// Matches reports whether the frame answers a request sent with token t.
func (f *Frame) Matches(t Token) bool {
	if f.Variant == Vanilla {
		return f.Token == Token(t.Basic())
	}

	return f.Token == t
}

// EncodeRequest builds a "gie3" request. With extended set the header carries the extra
// token bytes, asking DDNet servers for the extended response.
func EncodeRequest(t Token, extended bool) []byte {
	b := make([]byte, 0, MinFrameSize+1)
	if extended {
		extra := t.Extra()
		b = append(b, 'x', 'e', byte(extra>>8), byte(extra), 0, 0)
	} else {
		b = append(b, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
	}
	b = append(b, padding...)
	b = append(b, typeGetInfo...)

	return append(b, t.Basic())
}

// DecodeRequest is the server side counterpart of EncodeRequest.
// The returned token holds only the bits present on the wire.
func DecodeRequest(b []byte) (Token, bool, error) {
	if len(b) < MinFrameSize+1 {
		return 0, false, ErrTruncated
	}

	extended, ok := checkHeader(b)
	if !ok || !bytes.Equal(b[HeaderSize+4:MinFrameSize], typeGetInfo) {
		return 0, false, ErrForeign
	}

	t := Token(b[MinFrameSize])
	if extended {
		t |= Token(b[2])<<16 | Token(b[3])<<8
	}

	return t, extended, nil
}

// DecodeResponse validates the header of a response datagram and splits off the echoed token.
func DecodeResponse(b []byte) (*Frame, error) {
	if len(b) < MinFrameSize {
		return nil, ErrTruncated
	}

	if _, ok := checkHeader(b); !ok {
		return nil, ErrForeign
	}

	f := &Frame{PacketCount: 1}
	switch kind := b[HeaderSize+4 : MinFrameSize]; {
	case bytes.Equal(kind, typeInfo):
		f.Variant = Vanilla
	case bytes.Equal(kind, typeInfoExtended):
		f.Variant = Extended
		f.PacketCount = 0
	case bytes.Equal(kind, typeInfoExtendedMore):
		f.Variant = ExtendedMore
		f.PacketCount = 0
	default:
		return nil, ErrForeign
	}

	rest := b[MinFrameSize:]

	token, rest, err := nextDecimal(rest, tokenMask)
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	f.Token = Token(token)

	if f.Variant == ExtendedMore {
		index, r, err := nextDecimal(rest, 0xff)
		if err != nil {
			return nil, fmt.Errorf("packet number: %w", err)
		}
		// reserved
		end := bytes.IndexByte(r, 0)
		if end < 0 {
			return nil, ErrTruncated
		}
		f.PacketIndex = uint8(index)
		rest = r[end+1:]
	}

	f.Payload = rest

	return f, nil
}

// EncodeResponse builds a server side response datagram echoing token.
// packetNo is written only for ExtendedMore.
func EncodeResponse(v Variant, token uint32, packetNo int, payload []byte) []byte {
	b := make([]byte, 0, MinFrameSize+16+len(payload))
	b = append(b, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
	b = append(b, padding...)

	switch v {
	case Extended:
		b = append(b, typeInfoExtended...)
	case ExtendedMore:
		b = append(b, typeInfoExtendedMore...)
	default:
		b = append(b, typeInfo...)
	}

	b = strconv.AppendUint(b, uint64(token), 10)
	b = append(b, 0)
	if v == ExtendedMore {
		b = strconv.AppendInt(b, int64(packetNo), 10)
		b = append(b, 0, 0)
	}

	return append(b, payload...)
}

// checkHeader accepts the vanilla all-0xff connless header and the DDNet "xe" header.
func checkHeader(b []byte) (extended bool, ok bool) {
	if !bytes.Equal(b[HeaderSize:HeaderSize+4], padding) {
		return false, false
	}
	if b[0] == 'x' && b[1] == 'e' {
		return true, true
	}
	for _, c := range b[:HeaderSize] {
		if c != 0xff {
			return false, false
		}
	}

	return false, true
}

// nextDecimal reads one NUL-terminated unsigned decimal not above limit.
func nextDecimal(b []byte, limit uint64) (uint64, []byte, error) {
	end := bytes.IndexByte(b, 0)
	if end < 0 {
		return 0, nil, ErrTruncated
	}

	n, err := strconv.ParseUint(string(b[:end]), 10, 32)
	if err != nil || n > limit {
		return 0, nil, ErrMalformedFrame
	}

	return n, b[end+1:], nil
}
