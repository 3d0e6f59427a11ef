package app

import (
	"context"
	"sort"

	"github.com/paulmach/orb/geo"
	"github.com/rs/zerolog/log"

	"caffio/internal/adapters/observability"
	"caffio/internal/domain"
)

// MaxMatrixDestinations keeps one origin plus destinations within the
// provider's 25 coordinate limit.
const MaxMatrixDestinations = 24

// RankedCafe is a café with its travel distance from the user, when known.
type RankedCafe struct {
	Cafe               domain.Cafe `json:"cafe"`
	DistanceMeters     *float64    `json:"distance_m"`
	DurationSeconds    *float64    `json:"duration_s"`
	DistanceLabel      string      `json:"distance_label,omitempty"`
	StraightLineMeters *float64    `json:"straight_line_m,omitempty"`
}

type DistanceEnricher struct {
	geo domain.Geocoder
}

func NewDistanceEnricher(g domain.Geocoder) *DistanceEnricher {
	return &DistanceEnricher{geo: g}
}

// Enrich asks the provider for walking distances from origin to the first
// MaxMatrixDestinations cafés. Cafés past the cap, cafés without coordinates
// and every café of a failed cycle keep a nil distance. There is no retry.
func (e *DistanceEnricher) Enrich(ctx context.Context, origin domain.Coords, cafes []domain.Cafe) []RankedCafe {
	out := make([]RankedCafe, len(cafes))
	for i, c := range cafes {
		out[i] = RankedCafe{Cafe: c}
		if cc := c.Coords(); cc != nil {
			d := geo.DistanceHaversine(origin.Point(), cc.Point())
			out[i].StraightLineMeters = &d
		}
	}

	limit := len(cafes)
	if limit > MaxMatrixDestinations {
		limit = MaxMatrixDestinations
	}
	var (
		dests []domain.Coords
		slots []int // index into out for each destination
	)
	for i := 0; i < limit; i++ {
		if cc := cafes[i].Coords(); cc != nil {
			dests = append(dests, *cc)
			slots = append(slots, i)
		}
	}
	if len(dests) == 0 {
		observability.ObserveMatrix("skipped")
		return out
	}

	m, err := e.geo.DistanceMatrix(ctx, origin, dests)
	if err != nil {
		log.Warn().Err(err).Int("destinations", len(dests)).Msg("distance matrix failed")
		observability.ObserveMatrix("failed")
		return out
	}

	dist, ok := firstRow(m.Distances, len(dests))
	if !ok {
		log.Warn().Int("destinations", len(dests)).Msg("distance matrix row has unexpected length")
		observability.ObserveMatrix("failed")
		return out
	}
	dur, durOK := firstRow(m.Durations, len(dests))
	for j, i := range slots {
		if d := dist[j]; d != nil {
			v := *d
			out[i].DistanceMeters = &v
			out[i].DistanceLabel = FormatDistance(v)
		}
		if durOK {
			if d := dur[j]; d != nil {
				v := *d
				out[i].DurationSeconds = &v
			}
		}
	}
	observability.ObserveMatrix("ok")
	return out
}

// firstRow returns the origin row aligned to n destinations. The request pins
// sources=0 and lists destinations explicitly, so the row has n cells; a row of
// n+1 still carries the origin-to-origin cell and is shifted past it.
func firstRow(rows [][]*float64, n int) ([]*float64, bool) {
	if len(rows) == 0 {
		return nil, false
	}
	row := rows[0]
	switch len(row) {
	case n:
		return row, true
	case n + 1:
		return row[1:], true
	}
	return nil, false
}

// SortByDistance orders known distances ascending and puts unknown ones after
// them, keeping input order among equals.
func SortByDistance(rs []RankedCafe) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i].DistanceMeters, rs[j].DistanceMeters
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return *a < *b
	})
}
