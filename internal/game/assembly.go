package game

import (
	"github.com/woozymasta/twinfo/internal/protocol"
	"github.com/woozymasta/twinfo/internal/serverinfo"
)

// assembly collects the datagrams of one response.
type assembly struct {
	// fragments holds extended payloads by packet index.
	fragments map[uint8][]byte
	vanilla   bool
}

func newAssembly() *assembly {
	return &assembly{fragments: make(map[uint8][]byte)}
}

// add stores a matching frame and returns the server info once the response is complete.
// A nil info with a nil error means more packets are needed.
func (a *assembly) add(f *protocol.Frame) (*serverinfo.Info, error) {
	if f.Variant == protocol.Vanilla {
		a.vanilla = true
		return serverinfo.Parse(f.Payload)
	}

	// duplicates overwrite
	a.fragments[f.PacketIndex] = f.Payload

	return a.complete()
}

// complete parses the header from fragment 0 alone, then the player stream of fragments
// 0..n in ascending order. It waits until the list reaches num_clients.
func (a *assembly) complete() (*serverinfo.Info, error) {
	first, ok := a.fragments[0]
	if !ok {
		return nil, nil
	}

	info, stream, err := serverinfo.ParseHeader(first, serverinfo.LayoutExtended)
	if err != nil {
		return nil, err
	}

	players := append([]byte(nil), stream...)
	for i := 1; i < len(a.fragments); i++ {
		frag, ok := a.fragments[uint8(i)]
		if !ok {
			return nil, nil
		}
		players = append(players, frag...)
	}

	info.Players, err = serverinfo.ParsePlayers(players, serverinfo.LayoutExtended)
	if err != nil {
		return nil, err
	}

	if len(info.Players) < info.NumClients {
		return nil, nil
	}

	if err := info.Validate(); err != nil {
		return nil, err
	}

	return info, nil
}

func (a *assembly) packets() int {
	if a.vanilla {
		return 1
	}

	return len(a.fragments)
}
