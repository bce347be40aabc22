package fake

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/twinfo/internal/address"
	"github.com/woozymasta/twinfo/internal/protocol"
	"github.com/woozymasta/twinfo/internal/serverinfo"
)

// DefaultPlayersPerPacket is how many players an extended datagram carries.
const DefaultPlayersPerPacket = 16

// Server answers server info requests with a fixed status.
type Server struct {
	conn net.PacketConn
	info *serverinfo.Info

	wg       sync.WaitGroup
	requests atomic.Int64

	perPacket int
	reverse   bool
	silent    bool
	noise     bool
	vanilla   bool
}

// Option configures a Server.
type Option func(*Server)

// WithPlayersPerPacket splits extended responses into datagrams of n players.
func WithPlayersPerPacket(n int) Option {
	return func(s *Server) { s.perPacket = max(n, 1) }
}

// WithReverseOrder sends the datagrams of an extended response last to first.
func WithReverseOrder() Option {
	return func(s *Server) { s.reverse = true }
}

// WithSilence counts requests but never answers.
func WithSilence() Option {
	return func(s *Server) { s.silent = true }
}

// WithNoise precedes every answer with a foreign datagram and a response carrying a wrong token.
func WithNoise() Option {
	return func(s *Server) { s.noise = true }
}

// WithVanilla answers every request with a single "inf3" datagram, like Teeworlds 0.6 servers.
func WithVanilla() Option {
	return func(s *Server) { s.vanilla = true }
}

// Listen starts a responder on addr ("127.0.0.1:0" picks a free port).
func Listen(addr string, info *serverinfo.Info, opts ...Option) (*Server, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}

	s := &Server{conn: conn, info: info, perPacket: DefaultPlayersPerPacket}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.serve()

	return s, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() address.Address {
	udp := s.conn.LocalAddr().(*net.UDPAddr)

	return address.Address{Host: udp.IP.String(), Port: uint16(udp.Port)}
}

// Requests returns the number of valid requests received.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// Close stops the responder and waits for it to exit.
func (s *Server) Close() error {
	err := s.conn.Close()
	s.wg.Wait()

	return err
}

func (s *Server) serve() {
	defer s.wg.Done()

	buf := make([]byte, protocol.MaxPacketSize)
	for {
		n, from, err := s.conn.ReadFrom(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Error().Err(err).Msg("Fake server read failed")
			}
			return
		}

		token, extended, err := protocol.DecodeRequest(buf[:n])
		if err != nil {
			log.Trace().Err(err).Str("from", from.String()).Msg("Fake server ignored packet")
			continue
		}
		s.requests.Add(1)

		if s.silent {
			continue
		}

		for _, packet := range s.packets(token, extended) {
			if _, err := s.conn.WriteTo(packet, from); err != nil {
				log.Debug().Err(err).Str("to", from.String()).Msg("Fake server write failed")
			}
		}
	}
}

// packets builds the datagrams answering a request.
func (s *Server) packets(token protocol.Token, extended bool) [][]byte {
	var out [][]byte

	if s.noise {
		out = append(out,
			[]byte("\x00\x00\x00not a teeworlds packet"),
			protocol.EncodeResponse(protocol.Vanilla, uint32(token.Basic()+1), 0, []byte("bogus\x00")),
		)
	}

	if s.vanilla || !extended {
		payload := serverinfo.AppendHeader(nil, s.info, serverinfo.LayoutVanilla)
		payload = serverinfo.AppendPlayers(payload, s.info.Players, serverinfo.LayoutVanilla)

		return append(out, protocol.EncodeResponse(protocol.Vanilla, uint32(token.Basic()), 0, payload))
	}

	var fragments [][]byte
	players := s.info.Players
	for index := 0; index == 0 || len(players) > 0; index++ {
		chunk := players[:min(s.perPacket, len(players))]
		players = players[len(chunk):]

		if index == 0 {
			payload := serverinfo.AppendHeader(nil, s.info, serverinfo.LayoutExtended)
			payload = serverinfo.AppendPlayers(payload, chunk, serverinfo.LayoutExtended)
			fragments = append(fragments, protocol.EncodeResponse(protocol.Extended, uint32(token), 0, payload))
			continue
		}

		payload := serverinfo.AppendPlayers(nil, chunk, serverinfo.LayoutExtended)
		fragments = append(fragments, protocol.EncodeResponse(protocol.ExtendedMore, uint32(token), index, payload))
	}

	if s.reverse {
		for i, j := 0, len(fragments)-1; i < j; i, j = i+1, j-1 {
			fragments[i], fragments[j] = fragments[j], fragments[i]
		}
	}

	return append(out, fragments...)
}
