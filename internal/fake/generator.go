// Package fake provides randomized server info and a local UDP responder speaking the
// server info protocol, for tests and development.
package fake

import (
	"fmt"
	"math/rand/v2"

	"github.com/woozymasta/twinfo/internal/serverinfo"
)

var (
	maps      = []string{"ctf1", "ctf2", "ctf5", "dm1", "dm2", "dm6", "dm7", "Sunny Side Up", "Kobra 4", "Tutorial"}
	gameTypes = []string{"CTF", "DM", "TDM", "DDraceNetwork", "iCTF", "zCatch"}
	versions  = []string{"0.6.4", "0.6.5", "0.6.4, 17.4.2", "0.6.4, 18.0"}
	names     = []string{"nameless tee", "brainless tee", "Alice", "Bob", "Cammo", "Pioneer", "Ryozuki", "Tater", "Zwelf"}
	clans     = []string{"", "", "Kobra", "DDNet", "TeeSports", "Unique"}

	// ISO 3166-1 numeric codes, -1 is the unset flag
	countries = []int32{-1, -1, 276, 643, 250, 840, 804, 616, 203, 76}
)

// GenerateInfo returns a random server status with the given number of clients.
func GenerateInfo(clients int) *serverinfo.Info {
	maxClients := 16
	if clients > maxClients {
		maxClients = 64
	}

	info := &serverinfo.Info{
		Version:    versions[rand.IntN(len(versions))],
		Name:       fmt.Sprintf("Teeworlds Server #%d", rand.IntN(1000)),
		Map:        maps[rand.IntN(len(maps))],
		GameType:   gameTypes[rand.IntN(len(gameTypes))],
		MaxPlayers: maxClients,
		MaxClients: maxClients,
		NumClients: clients,
		Players:    make([]serverinfo.Player, 0, clients),
	}

	// 20% chance for a password
	if rand.Float32() < 0.2 {
		info.Flags |= serverinfo.FlagPassword
	}

	for i := 0; i < clients; i++ {
		p := serverinfo.Player{
			Name:    fmt.Sprintf("%s %d", names[rand.IntN(len(names))], i),
			Clan:    clans[rand.IntN(len(clans))],
			Country: countries[rand.IntN(len(countries))],
			Score:   int32(rand.IntN(50) - 5),
		}

		// 10% spectators
		if rand.Float32() < 0.1 {
			p.IsSpectator = true
		} else {
			info.NumPlayers++
		}

		info.Players = append(info.Players, p)
	}

	return info
}
