// Package address parses "host[:port]" strings into validated game server addresses.
package address

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultPort is the Teeworlds server port used when the address carries none.
const DefaultPort uint16 = 8303

var (
	// ErrInvalidHost is returned when the host part is empty.
	ErrInvalidHost = errors.New("invalid host")

	// ErrInvalidPort is returned when the port part is not a number in [1, 65535].
	ErrInvalidPort = errors.New("invalid port")
)

// Address is a validated host and port pair. Host is not resolved.
type Address struct {
	Host string `json:"host"`
	Port uint16 `json:"port"`
}

// String returns the address in a form accepted by net.Dial.
func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

// Resolve splits raw on its last colon into host and optional port.
// Bracketed IPv6 literals ("[::1]:8303") and bare IPv6 literals ("::1") are accepted as hosts.
func Resolve(raw string) (Address, error) {
	raw = strings.TrimSpace(raw)

	host, port, hasPort := split(raw)
	if host == "" {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidHost, raw)
	}

	addr := Address{Host: host, Port: DefaultPort}
	if !hasPort {
		return addr, nil
	}

	n, err := strconv.ParseUint(port, 10, 16)
	if err != nil || n == 0 {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidPort, port)
	}
	addr.Port = uint16(n)

	return addr, nil
}

func split(raw string) (host, port string, hasPort bool) {
	if strings.HasPrefix(raw, "[") {
		end := strings.IndexByte(raw, ']')
		if end < 0 {
			return "", "", false
		}
		host = raw[1:end]
		rest := raw[end+1:]
		if rest == "" {
			return host, "", false
		}
		if rest[0] != ':' {
			// garbage after the closing bracket
			return host, rest, true
		}
		return host, rest[1:], true
	}

	// bare IPv6 literal, no port possible
	if strings.Count(raw, ":") > 1 {
		return raw, "", false
	}

	i := strings.LastIndexByte(raw, ':')
	if i < 0 {
		return raw, "", false
	}

	return raw[:i], raw[i+1:], true
}
