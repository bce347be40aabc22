package serverinfo

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidNumber is returned when a numeric field is not ASCII decimal.
	ErrInvalidNumber = errors.New("invalid number")

	// ErrTruncated is returned when the payload ends inside the header or a player group.
	ErrTruncated = errors.New("truncated payload")

	// ErrTooManyPlayers is returned when the player list exceeds max_clients.
	ErrTooManyPlayers = errors.New("more players than client slots")
)

// Layout selects the field layout of a response.
type Layout uint8

const (
	// LayoutVanilla is the "inf3" layout.
	LayoutVanilla Layout = iota

	// LayoutExtended is the DDNet "iext"/"iex+" layout: map checksum and size after the map name,
	// a reserved string after max_clients and after every player group.
	LayoutExtended
)

// Parse decodes a complete single datagram "inf3" payload.
func Parse(payload []byte) (*Info, error) {
	info, rest, err := ParseHeader(payload, LayoutVanilla)
	if err != nil {
		return nil, err
	}

	if info.Players, err = ParsePlayers(rest, LayoutVanilla); err != nil {
		return nil, err
	}

	if err := info.Validate(); err != nil {
		return nil, err
	}

	return info, nil
}

// ParseHeader decodes the server fields and returns the remaining player stream.
func ParseHeader(payload []byte, layout Layout) (*Info, []byte, error) {
	r := &reader{buf: payload}
	info := &Info{}

	var err error
	if info.Version, err = r.str("version"); err != nil {
		return nil, nil, err
	}
	if info.Name, err = r.str("name"); err != nil {
		return nil, nil, err
	}
	if info.Map, err = r.str("map"); err != nil {
		return nil, nil, err
	}

	if layout == LayoutExtended {
		crc, err := r.int("map_crc", 64)
		if err != nil {
			return nil, nil, err
		}
		// servers print the checksum as signed
		info.MapCRC = uint32(crc)

		size, err := r.int("map_size", 32)
		if err != nil {
			return nil, nil, err
		}
		info.MapSize = int(size)
	}

	if info.GameType, err = r.str("game_type"); err != nil {
		return nil, nil, err
	}

	for _, f := range []struct {
		name string
		dst  *int
	}{
		{"flags", &info.Flags},
		{"num_players", &info.NumPlayers},
		{"max_players", &info.MaxPlayers},
		{"num_clients", &info.NumClients},
		{"max_clients", &info.MaxClients},
	} {
		n, err := r.int(f.name, 32)
		if err != nil {
			return nil, nil, err
		}
		*f.dst = int(n)
	}

	if layout == LayoutExtended {
		if _, err := r.str("reserved"); err != nil {
			return nil, nil, err
		}
	}

	return info, r.buf, nil
}

// ParsePlayers decodes player groups until the stream is exhausted.
// Fragments of an extended response are concatenated before calling it.
func ParsePlayers(stream []byte, layout Layout) ([]Player, error) {
	r := &reader{buf: stream}
	players := make([]Player, 0, 16)

	for !r.empty() {
		var (
			p   Player
			err error
		)

		if p.Name, err = r.str("player name"); err != nil {
			return nil, err
		}
		if p.Clan, err = r.str("player clan"); err != nil {
			return nil, err
		}

		country, err := r.int("player country", 32)
		if err != nil {
			return nil, err
		}
		p.Country = int32(country)

		score, err := r.int("player score", 32)
		if err != nil {
			return nil, err
		}
		p.Score = int32(score)

		isPlayer, err := r.int("player flag", 32)
		if err != nil {
			return nil, err
		}
		p.IsSpectator = isPlayer == 0

		if layout == LayoutExtended {
			if _, err := r.str("player reserved"); err != nil {
				return nil, err
			}
		}

		players = append(players, p)
	}

	return players, nil
}

// reader walks a NUL separated field sequence.
type reader struct {
	buf []byte
}

func (r *reader) empty() bool {
	return len(r.buf) == 0
}

func (r *reader) str(field string) (string, error) {
	end := bytes.IndexByte(r.buf, 0)
	if end < 0 {
		return "", fmt.Errorf("%w: missing %s", ErrTruncated, field)
	}

	s := string(r.buf[:end])
	r.buf = r.buf[end+1:]

	return s, nil
}

func (r *reader) int(field string, bits int) (int64, error) {
	s, err := r.str(field)
	if err != nil {
		return 0, err
	}

	// only a minus sign is allowed, ParseInt would also take "+"
	if strings.HasPrefix(s, "+") {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidNumber, field, s)
	}

	n, err := strconv.ParseInt(s, 10, bits)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidNumber, field, s)
	}

	return n, nil
}
