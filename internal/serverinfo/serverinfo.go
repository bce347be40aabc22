// Package serverinfo decodes the field sequence of Teeworlds server info responses.
package serverinfo

// FlagPassword is set in Info.Flags when the server requires a password.
const FlagPassword = 1

// Player is one client entry of a server info response.
type Player struct {
	Name        string `json:"name"`
	Clan        string `json:"clan"`
	Country     int32  `json:"country"`
	Score       int32  `json:"score"`
	IsSpectator bool   `json:"is_spectator"`
}

// Info is the decoded server status.
// Strings hold the raw bytes sent by the server, no charset is enforced.
type Info struct {
	Version  string `json:"version"`
	Name     string `json:"name"`
	Map      string `json:"map"`
	GameType string `json:"game_type"`

	// Players is ordered as sent by the server.
	Players []Player `json:"players"`

	Flags      int `json:"flags"`
	NumPlayers int `json:"num_players"`
	MaxPlayers int `json:"max_players"`
	NumClients int `json:"num_clients"`
	MaxClients int `json:"max_clients"`

	// Extended responses only.
	MapSize int    `json:"map_size,omitempty"`
	MapCRC  uint32 `json:"map_crc,omitempty"`
}

// Passworded reports whether FlagPassword is set.
func (i *Info) Passworded() bool {
	return i.Flags&FlagPassword != 0
}

// Validate checks that the player list fits the announced client slots.
func (i *Info) Validate() error {
	if len(i.Players) > i.MaxClients {
		return ErrTooManyPlayers
	}

	return nil
}
