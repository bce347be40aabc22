// Package game queries Teeworlds 0.6 and DDNet servers for their status over UDP.
package game

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/netip"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/twinfo/internal/address"
	"github.com/woozymasta/twinfo/internal/config"
	"github.com/woozymasta/twinfo/internal/protocol"
	"github.com/woozymasta/twinfo/internal/serverinfo"
)

// Response is a successfully decoded server status.
type Response struct {
	Info *serverinfo.Info

	// Remote is the address the response came from.
	Remote netip.AddrPort

	// Latency is measured from sending the request to the last datagram needed.
	Latency time.Duration

	// Packets is the number of datagrams the response was assembled from.
	Packets int
}

// QueryServer connects to a game server via UDP and requests its server info.
// One request is sent; the query fails with KindTimeout when no complete response
// arrives within options.Timeout. The socket is closed before returning.
func QueryServer(ctx context.Context, addr address.Address, options config.Query) (*Response, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp", addr.String())
	if err != nil {
		if ctx.Err() != nil {
			return nil, &QueryError{Kind: KindCanceled, Op: "dial", Err: ctx.Err()}
		}
		return nil, &QueryError{Kind: KindNetwork, Op: "dial", Err: err}
	}
	defer func() { _ = conn.Close() }()

	return query(ctx, conn, options)
}

func query(ctx context.Context, conn net.Conn, options config.Query) (*Response, error) {
	logCtx := log.With().Str("remote", conn.RemoteAddr().String()).Logger()

	token := protocol.NewToken()
	request := protocol.EncodeRequest(token, !options.Vanilla)

	sentAt := time.Now()
	if _, err := conn.Write(request); err != nil {
		return nil, &QueryError{Kind: KindNetwork, Op: "send", Err: err}
	}

	// The deadline is fixed at send time, discarded packets do not extend it.
	if err := conn.SetReadDeadline(sentAt.Add(options.Timeout.Duration())); err != nil {
		return nil, &QueryError{Kind: KindNetwork, Op: "set deadline", Err: err}
	}

	// Unblock the pending read when the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	asm := newAssembly()
	buf := make([]byte, options.BufferSize)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &QueryError{Kind: KindCanceled, Op: "receive", Err: ctx.Err()}
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, &QueryError{Kind: KindTimeout, Op: "receive", Err: ErrTimeout}
			}

			return nil, &QueryError{Kind: KindNetwork, Op: "receive", Err: err}
		}

		frame, err := protocol.DecodeResponse(buf[:n])
		if err != nil {
			logCtx.Trace().Err(err).Int("size", n).Msg("Discarded packet")
			continue
		}

		if !frame.Matches(token) {
			logCtx.Trace().
				Uint32("token", uint32(frame.Token)).
				Uint32("expected", uint32(token)).
				Msg("Discarded response with foreign token")
			continue
		}

		if frame.Variant == protocol.ExtendedMore && frame.PacketIndex == 0 {
			logCtx.Trace().Msg("Discarded extra packet claiming index 0")
			continue
		}

		// buf is reused for the next read
		frame.Payload = bytes.Clone(frame.Payload)

		info, err := asm.add(frame)
		if err != nil {
			return nil, &QueryError{Kind: KindParse, Op: "parse " + frame.Variant.String(), Err: err}
		}
		if info == nil {
			logCtx.Trace().
				Uint8("index", frame.PacketIndex).
				Int("buffered", asm.packets()).
				Msg("Awaiting more packets")
			continue
		}

		resp := &Response{
			Info:    info,
			Latency: time.Since(sentAt),
			Packets: asm.packets(),
		}
		if udp, ok := conn.RemoteAddr().(*net.UDPAddr); ok {
			resp.Remote = udp.AddrPort()
		}

		return resp, nil
	}
}
