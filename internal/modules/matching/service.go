// README: Matching service answers nearby queries from the provider index.
package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"mechanico/internal/config"
	"mechanico/internal/geo"
	"mechanico/internal/modules/provider"
	"mechanico/internal/observability"
	"mechanico/internal/types"
)

// Index supplies the candidate read model for one offering.
type Index interface {
	Candidates(ctx context.Context, offeringID types.ID) ([]provider.Candidate, error)
}

type Service struct {
	index Index
	cfg   config.MatchingConfig
	log   logrus.FieldLogger
}

func NewService(index Index, cfg config.MatchingConfig, log logrus.FieldLogger) *Service {
	if cfg.MaxRadiusKm <= 0 {
		cfg.MaxRadiusKm = 50
	}
	return &Service{index: index, cfg: cfg, log: log}
}

// FindNearby returns providers able to fulfil the offering within the radius.
// An empty result is not an error.
func (s *Service) FindNearby(ctx context.Context, q NearbyQuery) ([]RankedCandidate, error) {
	start := time.Now()
	defer func() { observability.NearbyLatency.Observe(time.Since(start).Seconds()) }()

	if q.OfferingID == "" {
		observability.NearbyQueries.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: offering id is required", ErrInvalidQuery)
	}
	if !geo.Valid(q.Origin) {
		observability.NearbyQueries.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: origin out of range", ErrInvalidQuery)
	}
	if q.RadiusKm <= 0 {
		observability.NearbyQueries.WithLabelValues("empty").Inc()
		return []RankedCandidate{}, nil
	}
	radius := q.RadiusKm
	if radius > s.cfg.MaxRadiusKm {
		radius = s.cfg.MaxRadiusKm
	}

	candidates, err := s.index.Candidates(ctx, q.OfferingID)
	if err != nil {
		observability.NearbyQueries.WithLabelValues("error").Inc()
		return nil, err
	}
	ranked := Rank(q.Origin, radius, candidates)

	observability.NearbyQueries.WithLabelValues("ok").Inc()
	observability.NearbyResults.Observe(float64(len(ranked)))
	s.log.WithFields(logrus.Fields{
		"offering_id": q.OfferingID,
		"radius_km":   radius,
		"indexed":     len(candidates),
		"returned":    len(ranked),
	}).Debug("nearby query")
	return ranked, nil
}

// DefaultRadiusKm is applied by callers that omit a radius.
func (s *Service) DefaultRadiusKm() float64 {
	if s.cfg.DefaultRadiusKm > 0 {
		return s.cfg.DefaultRadiusKm
	}
	return 10
}
