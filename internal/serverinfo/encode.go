package serverinfo

import "strconv"

// AppendHeader appends the server fields of info in the given layout.
func AppendHeader(b []byte, info *Info, layout Layout) []byte {
	b = appendStr(b, info.Version)
	b = appendStr(b, info.Name)
	b = appendStr(b, info.Map)
	if layout == LayoutExtended {
		// servers print the checksum as signed
		b = appendInt(b, int64(int32(info.MapCRC)))
		b = appendInt(b, int64(info.MapSize))
	}
	b = appendStr(b, info.GameType)
	b = appendInt(b, int64(info.Flags))
	b = appendInt(b, int64(info.NumPlayers))
	b = appendInt(b, int64(info.MaxPlayers))
	b = appendInt(b, int64(info.NumClients))
	b = appendInt(b, int64(info.MaxClients))
	if layout == LayoutExtended {
		b = appendStr(b, "")
	}

	return b
}

// AppendPlayers appends player groups in the given layout.
func AppendPlayers(b []byte, players []Player, layout Layout) []byte {
	for _, p := range players {
		b = appendStr(b, p.Name)
		b = appendStr(b, p.Clan)
		b = appendInt(b, int64(p.Country))
		b = appendInt(b, int64(p.Score))
		if p.IsSpectator {
			b = appendInt(b, 0)
		} else {
			b = appendInt(b, 1)
		}
		if layout == LayoutExtended {
			b = appendStr(b, "")
		}
	}

	return b
}

func appendStr(b []byte, s string) []byte {
	return append(append(b, s...), 0)
}

func appendInt(b []byte, n int64) []byte {
	return append(strconv.AppendInt(b, n, 10), 0)
}
