// README: Catalog store backed by PostgreSQL.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

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

const offeringColumns = `id, provider_id, category, name, description, base_price, currency, duration_min, is_active`

func (s *Store) GetOffering(ctx context.Context, id types.ID) (*Offering, error) {
	row := s.db.QueryRow(ctx, `SELECT `+offeringColumns+` FROM offerings WHERE id = $1`, string(id))
	o, err := scanOffering(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) ListOfferings(ctx context.Context, f Filter) ([]Offering, error) {
	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, "category = $"+strconv.Itoa(len(args)))
	}
	if f.Active != nil {
		args = append(args, *f.Active)
		where = append(where, "is_active = $"+strconv.Itoa(len(args)))
	}
	q := `SELECT ` + offeringColumns + ` FROM offerings`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY category, name`

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Offering
	for rows.Next() {
		o, err := scanOffering(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) ProviderOffers(ctx context.Context, providerID, offeringID types.ID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM provider_offerings
			WHERE provider_id = $1 AND offering_id = $2
			UNION ALL
			SELECT 1 FROM offerings
			WHERE id = $2 AND provider_id = $1
		)`, string(providerID), string(offeringID),
	).Scan(&exists)
	return exists, err
}

func (s *Store) VehicleOwner(ctx context.Context, vehicleID types.ID) (types.ID, error) {
	var owner string
	err := s.db.QueryRow(ctx, `SELECT owner_id FROM vehicles WHERE id = $1`, string(vehicleID)).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrVehicleNotFound
	}
	if err != nil {
		return "", err
	}
	return types.ID(owner), nil
}

func scanOffering(row pgx.Row) (Offering, error) {
	var o Offering
	var owner, desc sql.NullString
	err := row.Scan(
		&o.ID, &owner, &o.Category, &o.Name, &desc,
		&o.BasePrice.Amount, &o.BasePrice.Currency, &o.DurationMin, &o.Active,
	)
	o.ProviderID = types.ID(owner.String)
	o.Description = desc.String
	if o.BasePrice.Currency == "" {
		o.BasePrice.Currency = types.DefaultCurrency
	}
	return o, err
}
