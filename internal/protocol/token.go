package protocol

import "math/rand/v2"

// tokenMask keeps the 24 bits carried on the wire: one basic byte in the request body
// and two extra bytes in the extended connless header.
const tokenMask = 0xffffff

// Token binds a response to the request that asked for it.
type Token uint32

// NewToken returns a fresh random token.
func NewToken() Token {
	return Token(rand.Uint32() & tokenMask)
}

// Basic returns the byte appended to the request body. Vanilla servers echo only this part.
func (t Token) Basic() byte {
	return byte(t)
}

// Extra returns the 16 bits sent in the extended connless header.
func (t Token) Extra() uint16 {
	return uint16(t >> 8)
}
