package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRequestVanilla(t *testing.T) {
	b := EncodeRequest(Token(0x123456), false)

	want := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 'g', 'i', 'e', '3', 0x56}
	assert.Equal(t, want, b)
}

func TestEncodeRequestExtended(t *testing.T) {
	b := EncodeRequest(Token(0x123456), true)

	want := []byte{'x', 'e', 0x12, 0x34, 0, 0, 0xff, 0xff, 0xff, 0xff, 'g', 'i', 'e', '3', 0x56}
	assert.Equal(t, want, b)
}

func TestDecodeRequest(t *testing.T) {
	tok := NewToken()

	got, extended, err := DecodeRequest(EncodeRequest(tok, true))
	require.NoError(t, err)
	assert.True(t, extended)
	assert.Equal(t, tok, got)

	got, extended, err = DecodeRequest(EncodeRequest(tok, false))
	require.NoError(t, err)
	assert.False(t, extended)
	assert.Equal(t, Token(tok.Basic()), got)

	_, _, err = DecodeRequest([]byte("hello"))
	assert.ErrorIs(t, err, ErrTruncated)

	_, _, err = DecodeRequest([]byte("\xff\xff\xff\xff\xff\xff\xff\xff\xff\xffreqt\x00"))
	assert.ErrorIs(t, err, ErrForeign)
}

func TestTokenRoundTrip(t *testing.T) {
	for i := 0; i < 100; i++ {
		tok := NewToken()
		require.LessOrEqual(t, uint32(tok), uint32(tokenMask))

		// extended servers echo the full token
		frame, err := DecodeResponse(EncodeResponse(Extended, uint32(tok), 0, []byte("payload")))
		require.NoError(t, err)
		assert.Equal(t, tok, frame.Token)
		assert.True(t, frame.Matches(tok))

		// vanilla servers echo only the byte from the request body
		frame, err = DecodeResponse(EncodeResponse(Vanilla, uint32(tok.Basic()), 0, nil))
		require.NoError(t, err)
		assert.True(t, frame.Matches(tok))
	}
}

func TestDecodeResponseVanilla(t *testing.T) {
	frame, err := DecodeResponse(EncodeResponse(Vanilla, 42, 0, []byte("0.6.4\x00name\x00")))
	require.NoError(t, err)

	assert.Equal(t, Vanilla, frame.Variant)
	assert.Equal(t, Token(42), frame.Token)
	assert.Equal(t, uint8(0), frame.PacketIndex)
	assert.Equal(t, uint8(1), frame.PacketCount)
	assert.Equal(t, []byte("0.6.4\x00name\x00"), frame.Payload)
}

func TestDecodeResponseExtendedMore(t *testing.T) {
	frame, err := DecodeResponse(EncodeResponse(ExtendedMore, 0xabcdef, 3, []byte("nick\x00")))
	require.NoError(t, err)

	assert.Equal(t, ExtendedMore, frame.Variant)
	assert.Equal(t, Token(0xabcdef), frame.Token)
	assert.Equal(t, uint8(3), frame.PacketIndex)
	assert.Equal(t, uint8(0), frame.PacketCount)
	assert.Equal(t, []byte("nick\x00"), frame.Payload)
}

func TestDecodeResponseAcceptsExtendedHeader(t *testing.T) {
	b := EncodeResponse(Vanilla, 7, 0, nil)
	copy(b, []byte{'x', 'e', 1, 2, 0, 0})

	frame, err := DecodeResponse(b)
	require.NoError(t, err)
	assert.Equal(t, Token(7), frame.Token)
}

func TestDecodeResponseErrors(t *testing.T) {
	valid := EncodeResponse(Vanilla, 1, 0, nil)

	tests := []struct {
		name  string
		frame []byte
		want  error
	}{
		{name: "empty", frame: nil, want: ErrTruncated},
		{name: "short", frame: valid[:MinFrameSize-1], want: ErrTruncated},
		{name: "no token terminator", frame: []byte("\xff\xff\xff\xff\xff\xff\xff\xff\xff\xffinf3123"), want: ErrTruncated},
		{name: "non decimal token", frame: []byte("\xff\xff\xff\xff\xff\xff\xff\xff\xff\xffinf3abc\x00"), want: ErrMalformedFrame},
		{name: "token overflow", frame: []byte("\xff\xff\xff\xff\xff\xff\xff\xff\xff\xffiext16777216\x00"), want: ErrMalformedFrame},
		{name: "packet number overflow", frame: []byte("\xff\xff\xff\xff\xff\xff\xff\xff\xff\xffiex+1\x00256\x00\x00"), want: ErrMalformedFrame},
		{name: "missing reserved", frame: []byte("\xff\xff\xff\xff\xff\xff\xff\xff\xff\xffiex+1\x002\x00"), want: ErrTruncated},
		{name: "unknown type", frame: []byte("\xff\xff\xff\xff\xff\xff\xff\xff\xff\xffinfo1\x00"), want: ErrForeign},
		{name: "bad padding", frame: []byte("\xff\xff\xff\xff\xff\xff\x00\xff\xff\xffinf31\x00"), want: ErrForeign},
		{name: "bad header", frame: []byte("HTTP/1.1 200 OKinf31\x00"), want: ErrForeign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeResponse(tt.frame)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFrameMatches(t *testing.T) {
	tok := Token(0x0102ff)

	assert.True(t, (&Frame{Variant: Vanilla, Token: 0xff}).Matches(tok))
	assert.False(t, (&Frame{Variant: Vanilla, Token: 0xfe}).Matches(tok))
	assert.True(t, (&Frame{Variant: Extended, Token: 0x0102ff}).Matches(tok))
	assert.False(t, (&Frame{Variant: Extended, Token: 0xff}).Matches(tok))
	assert.False(t, (&Frame{Variant: ExtendedMore, Token: 0x0103ff}).Matches(tok))
}
