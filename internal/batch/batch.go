// Package batch queries a list of named servers and collects exactly one outcome per name.
package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/woozymasta/twinfo/internal/address"
	"github.com/woozymasta/twinfo/internal/config"
	"github.com/woozymasta/twinfo/internal/game"
)

// Entry is a server to query under a caller chosen name.
type Entry struct {
	Name    string
	Address address.Address
}

// Outcome is the result of querying one entry: Response on success, Err otherwise.
type Outcome struct {
	Response *game.Response
	Err      error

	// Country is the ISO code of the responding IP, when a lookup is configured.
	Country string

	Address address.Address
}

// OK reports whether the query succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Response != nil
}

// Result maps entry names to outcomes.
type Result map[string]Outcome

// Failed returns the number of failed outcomes.
func (r Result) Failed() int {
	var n int
	for _, o := range r {
		if !o.OK() {
			n++
		}
	}

	return n
}

// QueryFunc performs a single server query.
type QueryFunc func(ctx context.Context, addr address.Address, options config.Query) (*game.Response, error)

// CountryLookup resolves an IP address to an ISO country code.
type CountryLookup interface {
	GetCountryCode(ip string) string
}

// Runner queries servers with a bounded worker pool.
type Runner struct {
	query   QueryFunc
	geo     CountryLookup
	limiter *rate.Limiter
	options config.Query
}

// New creates a Runner using game.QueryServer. geo may be nil.
func New(options config.Query, geo CountryLookup) *Runner {
	r := &Runner{
		query:   game.QueryServer,
		geo:     geo,
		options: options,
	}

	if options.Rate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(options.Rate), 1)
	}

	return r
}

// Run queries every entry and returns once each has an outcome. A failing entry never affects
// the others. For duplicate names the entry appearing last in entries wins.
func (r *Runner) Run(ctx context.Context, entries []Entry) Result {
	outcomes := make([]Outcome, len(entries))

	workers := min(max(r.options.Workers, 1), max(len(entries), 1))
	jobs := make(chan int, len(entries))
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				outcomes[idx] = r.process(ctx, entries[idx])
			}
		}()
	}

	// Send jobs
	for i := range entries {
		jobs <- i
	}
	close(jobs)

	wg.Wait()

	result := make(Result, len(entries))
	for i, e := range entries {
		result[e.Name] = outcomes[i]
	}

	return result
}

func (r *Runner) process(ctx context.Context, e Entry) (out Outcome) {
	logCtx := log.With().
		Str("server", e.Name).
		Str("address", e.Address.String()).
		Logger()

	out.Address = e.Address

	defer func() {
		if p := recover(); p != nil {
			logCtx.Error().Interface("panic", p).Msg("Server query panicked")
			out = Outcome{Address: e.Address, Err: fmt.Errorf("query panicked: %v", p)}
		}
	}()

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			out.Err = &game.QueryError{Kind: game.KindCanceled, Op: "start", Err: err}
			return out
		}

		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				out.Err = &game.QueryError{Kind: game.KindCanceled, Op: "rate limit", Err: err}
				return out
			}
		}

		resp, err := r.query(ctx, e.Address, r.options)
		if err == nil {
			out.Response = resp
			if r.geo != nil && resp.Remote.IsValid() {
				out.Country = r.geo.GetCountryCode(resp.Remote.Addr().Unmap().String())
			}

			logCtx.Debug().
				Str("name", resp.Info.Name).
				Int("clients", len(resp.Info.Players)).
				Dur("latency", resp.Latency).
				Msg("Server queried")

			return out
		}

		if game.KindOf(err) == game.KindTimeout && attempt < r.options.Retries {
			logCtx.Debug().Int("attempt", attempt+1).Msg("Query timed out, retrying")
			continue
		}

		logCtx.Warn().Err(err).Str("kind", string(game.KindOf(err))).Msg("Server query failed")
		out.Err = err

		return out
	}
}
