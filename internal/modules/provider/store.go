// README: Provider store backed by PostgreSQL.
package provider

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mechanico/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Profile, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, display_name, business_name, avatar, specializations, trust_score,
		       is_available, lat, lng, position_at
		FROM provider_profiles
		WHERE id = $1`, string(id),
	)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Candidates loads profile, offering and rating scores in one query. Ratings
// are aggregated into an array so the mean stays a Go computation.
func (s *Store) Candidates(ctx context.Context, offeringID types.ID) ([]Candidate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT p.id, p.display_name, p.business_name, p.avatar, p.specializations, p.trust_score,
		       p.is_available, p.lat, p.lng, p.position_at,
		       o.id, o.category, o.name, o.description, o.base_price, o.currency, o.duration_min, o.is_active,
		       COALESCE((SELECT array_agg(r.score) FROM ratings r WHERE r.provider_id = p.id), '{}')
		FROM provider_profiles p
		JOIN offerings o ON o.id = $1 AND o.is_active
		WHERE (o.provider_id = p.id OR EXISTS (
		        SELECT 1 FROM provider_offerings po
		        WHERE po.provider_id = p.id AND po.offering_id = o.id))
		  AND p.is_available
		  AND p.lat IS NOT NULL AND p.lng IS NOT NULL`,
		string(offeringID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var (
			c          Candidate
			business   sql.NullString
			avatar     sql.NullString
			lat, lng   sql.NullFloat64
			positionAt sql.NullTime
			desc       sql.NullString
			scores     []int32
			specs      []string
		)
		err := rows.Scan(
			&c.Profile.ID, &c.Profile.DisplayName, &business, &avatar, &specs, &c.Profile.TrustScore,
			&c.Profile.Available, &lat, &lng, &positionAt,
			&c.Offering.ID, &c.Offering.Category, &c.Offering.Name, &desc,
			&c.Offering.BasePrice.Amount, &c.Offering.BasePrice.Currency, &c.Offering.DurationMin, &c.Offering.Active,
			&scores,
		)
		if err != nil {
			return nil, err
		}
		c.Profile.BusinessName = business.String
		c.Profile.Avatar = avatar.String
		c.Profile.Specializations = specs
		c.Profile.Position, c.Profile.PositionAt = toPosition(lat, lng, positionAt)
		c.Offering.Description = desc.String
		c.Ratings = make([]int, len(scores))
		for i, v := range scores {
			c.Ratings[i] = int(v)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdatePosition reports false when a newer position is already stored.
func (s *Store) UpdatePosition(ctx context.Context, id types.ID, p types.Point, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE provider_profiles
		SET lat = $1, lng = $2, position_at = $3
		WHERE id = $4 AND (position_at IS NULL OR position_at < $3)`,
		p.Lat, p.Lng, at, string(id),
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, s.exists(ctx, id)
	}
	return true, nil
}

func (s *Store) SetAvailability(ctx context.Context, id types.ID, available bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE provider_profiles SET is_available = $1 WHERE id = $2`, available, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) exists(ctx context.Context, id types.ID) error {
	var ok bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM provider_profiles WHERE id = $1)`, string(id)).Scan(&ok); err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var (
		p          Profile
		business   sql.NullString
		avatar     sql.NullString
		lat, lng   sql.NullFloat64
		positionAt sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.DisplayName, &business, &avatar, &p.Specializations, &p.TrustScore,
		&p.Available, &lat, &lng, &positionAt,
	)
	if err != nil {
		return nil, err
	}
	p.BusinessName = business.String
	p.Avatar = avatar.String
	p.Position, p.PositionAt = toPosition(lat, lng, positionAt)
	return &p, nil
}

func toPosition(lat, lng sql.NullFloat64, at sql.NullTime) (*types.Point, *time.Time) {
	if !lat.Valid || !lng.Valid {
		return nil, nil
	}
	pt := &types.Point{Lat: lat.Float64, Lng: lng.Float64}
	if !at.Valid {
		return pt, nil
	}
	t := at.Time
	return pt, &t
}
