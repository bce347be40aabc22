package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/woozymasta/twinfo/internal/address"
)

// ServerEntry is a named server address given as NAME=ADDRESS.
type ServerEntry struct {
	Name    string
	Address address.Address
}

// UnmarshalFlag implements flags.Unmarshaler.
func (e *ServerEntry) UnmarshalFlag(value string) error {
	name, raw, ok := strings.Cut(value, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("server %q: expected NAME=ADDRESS", value)
	}

	addr, err := address.Resolve(raw)
	if err != nil {
		return fmt.Errorf("server %q: %w", name, err)
	}

	e.Name = name
	e.Address = addr

	return nil
}

// MarshalFlag implements flags.Marshaler.
func (e ServerEntry) MarshalFlag() (string, error) {
	return e.Name + "=" + e.Address.String(), nil
}

// Seconds is a duration accepted as fractional seconds ("2", "0.05") or as a Go duration ("1500ms").
type Seconds time.Duration

// UnmarshalFlag implements flags.Unmarshaler.
func (s *Seconds) UnmarshalFlag(value string) error {
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("invalid duration %q", value)
		}
		*s = Seconds(f * float64(time.Second))
		return nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q", value)
	}
	*s = Seconds(d)

	return nil
}

// MarshalFlag implements flags.Marshaler.
func (s Seconds) MarshalFlag() (string, error) {
	return s.String(), nil
}

// Duration converts s to time.Duration.
func (s Seconds) Duration() time.Duration {
	return time.Duration(s)
}

func (s Seconds) String() string {
	return time.Duration(s).String()
}
