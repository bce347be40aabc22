package geoip

import (
	"net/netip"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/rs/zerolog/log"
)

// Provider wraps the GeoIP2 database reader to provide country lookup functionality.
type Provider struct {
	db *geoip2.Reader
}

// Open initializes the GeoIP database reader from a specific file path.
func Open(path string) (*Provider, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}

	meta := db.Metadata()
	log.Debug().
		Str("type", meta.DatabaseType).
		Time("build", time.Unix(int64(meta.BuildEpoch), 0)). //nolint:gosec
		Msg("GeoIP database opened")

	return &Provider{db: db}, nil
}

// Close closes the underlying GeoIP database reader.
func (p *Provider) Close() error {
	return p.db.Close()
}

// GetCountryCode looks up the ISO country code (e.g., "US", "DE") for a given IP address string.
// It returns an empty string for invalid, private or loopback addresses and unknown countries.
func (p *Provider) GetCountryCode(ipStr string) string {
	addr, err := netip.ParseAddr(ipStr)
	if err != nil {
		return ""
	}

	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() || addr.IsLinkLocalUnicast() {
		return ""
	}

	record, err := p.db.Country(addr.AsSlice())
	if err != nil {
		log.Trace().Err(err).Str("ip", ipStr).Msg("GeoIP lookup failed")
		return ""
	}

	return record.Country.IsoCode
}
