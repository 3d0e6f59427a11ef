package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"caffio/internal/domain"
)

// SuggestTypes is the feature type filter sent with every suggest call.
var SuggestTypes = []string{"address", "poi", "locality", "neighborhood", "street", "region", "country", "postcode"}

const (
	KindCafe  = "cafe"
	KindPlace = "place"
)

// TaggedSuggestion is a provider suggestion marked as a curated café or a generic place.
type TaggedSuggestion struct {
	domain.Suggestion
	Kind          string       `json:"kind"`
	Cafe          *domain.Cafe `json:"cafe,omitempty"`
	DistanceLabel string       `json:"distance_label,omitempty"`
}

// Selection is where the map recenters after a suggestion is picked.
type Selection struct {
	Longitude float64        `json:"longitude"`
	Latitude  float64        `json:"latitude"`
	Address   domain.Address `json:"address"`
}

// Suggest runs an autocomplete query for a session. Calls for the same session
// are debounced: only the last one inside the window reaches the provider and
// the ones it replaced return ErrSuperseded. A provider failure yields an
// empty list.
func (s *QueryService) Suggest(ctx context.Context, session, query string, proximity *domain.Coords) ([]TaggedSuggestion, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []TaggedSuggestion{}, nil
	}

	ctx, t, done := s.gate.Begin(ctx, sessionKey("suggest", session))
	defer done()

	if session != "" && s.debounce > 0 {
		timer := time.NewTimer(s.debounce)
		select {
		case <-ctx.Done():
			timer.Stop()
			if !s.gate.Current(t) {
				return nil, domain.ErrSuperseded
			}
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	token := session
	if token == "" {
		token = uuid.NewString()
	}
	if proximity != nil && proximity.IsZero() {
		proximity = nil
	}

	var (
		suggestions []domain.Suggestion
		stored      []domain.Cafe
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		suggestions, err = s.geo.Suggest(gctx, query, domain.SuggestOptions{
			SessionToken: token,
			Proximity:    proximity,
			Types:        SuggestTypes,
		})
		if err != nil && ctx.Err() == nil {
			// autocomplete degrades to no suggestions
			log.Warn().Err(err).Str("query", query).Msg("suggest failed")
			suggestions = nil
			return nil
		}
		return err
	})
	g.Go(func() error {
		var err error
		stored, err = s.repo.ListCafes(gctx)
		return err
	})
	err := g.Wait()
	if !s.gate.Current(t) {
		return nil, domain.ErrSuperseded
	}
	if err != nil {
		return nil, err
	}

	return tagSuggestions(suggestions, domain.NewCafeIndex(stored)), nil
}

func tagSuggestions(in []domain.Suggestion, idx domain.CafeIndex) []TaggedSuggestion {
	out := make([]TaggedSuggestion, 0, len(in))
	for _, sg := range in {
		ts := TaggedSuggestion{Suggestion: sg, Kind: KindPlace}
		if c, ok := idx.ByID[sg.MapboxID]; ok {
			c := c
			ts.Kind = KindCafe
			ts.Cafe = &c
		}
		if sg.Distance != nil {
			ts.DistanceLabel = FormatDistance(*sg.Distance)
		}
		out = append(out, ts)
	}
	return out
}

// Select resolves a picked suggestion to exact coordinates and an address.
func (s *QueryService) Select(ctx context.Context, session, mapboxID string) (Selection, error) {
	token := session
	if token == "" {
		token = uuid.NewString()
	}
	f, err := s.geo.Retrieve(ctx, mapboxID, token)
	if err != nil {
		return Selection{}, err
	}
	if f == nil {
		return Selection{}, domain.ErrNotFound
	}
	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return Selection{}, domain.ErrNoGeometry
	}
	return Selection{
		Longitude: pt.Lon(),
		Latitude:  pt.Lat(),
		Address:   addressFromFeature(f, pt.Lon(), pt.Lat()),
	}, nil
}
