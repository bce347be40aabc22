// Package models defines the JSON records written for queried servers and the server registry rows.
package models

import (
	"time"

	"github.com/samber/lo"

	"github.com/woozymasta/twinfo/internal/batch"
	"github.com/woozymasta/twinfo/internal/game"
	"github.com/woozymasta/twinfo/internal/serverinfo"
)

// ServerStatus is the record of a server that answered the query.
type ServerStatus struct {
	*serverinfo.Info

	Address     string  `json:"address"`
	CountryCode string  `json:"country_code,omitempty"`
	LatencyMS   float64 `json:"latency_ms"`
	Online      bool    `json:"online"`
	Password    bool    `json:"password"`
}

// ServerFailure is the record of a server whose query failed.
type ServerFailure struct {
	Address string       `json:"address"`
	Error   QueryFailure `json:"error"`
	Online  bool         `json:"online"`
}

// QueryFailure describes why a query failed.
type QueryFailure struct {
	Kind   game.Kind `json:"kind"`
	Detail string    `json:"detail"`
}

// Server is a named address kept in the server registry.
type Server struct {
	AddedAt time.Time `json:"added_at"`
	Name    string    `json:"name"`
	Host    string    `json:"host"`
	Port    uint16    `json:"port"`
}

// FromOutcome converts a query outcome into its JSON record.
func FromOutcome(o batch.Outcome) any {
	if !o.OK() {
		kind := game.KindOf(o.Err)
		if kind == "" {
			kind = game.KindUnknown
		}

		return ServerFailure{
			Address: o.Address.String(),
			Error: QueryFailure{
				Kind:   kind,
				Detail: errorDetail(o.Err),
			},
		}
	}

	return ServerStatus{
		Info:        o.Response.Info,
		Address:     o.Address.String(),
		CountryCode: o.Country,
		LatencyMS:   float64(o.Response.Latency.Microseconds()) / 1000,
		Online:      true,
		Password:    o.Response.Info.Passworded(),
	}
}

// FromResult converts a batch result into the document written to disk, keyed by server name.
func FromResult(result batch.Result) map[string]any {
	return lo.MapValues(result, func(o batch.Outcome, _ string) any {
		return FromOutcome(o)
	})
}

func errorDetail(err error) string {
	if err == nil {
		return "no response"
	}

	return err.Error()
}
