// README: Booking store backed by PostgreSQL.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"mechanico/internal/types"
)

// uniqueViolation is raised by the one-in-progress-per-pair partial index.
const uniqueViolation = "23505"

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const bookingColumns = `
	id, status, status_version, customer_id, provider_id, offering_id, vehicle_id,
	lat, lng, address, price, currency, duration_min, notes,
	created_at, confirmed_at, started_at, completed_at, cancelled_at, cancelled_by`

func (s *Store) Create(ctx context.Context, b *Booking) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO bookings (
			id, status, status_version, customer_id, provider_id, offering_id, vehicle_id,
			lat, lng, address, price, currency, duration_min, notes, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13, $14, $15
		)`,
		string(b.ID),
		string(b.Status),
		b.StatusVersion,
		string(b.CustomerID),
		string(b.ProviderID),
		string(b.OfferingID),
		string(b.VehicleID),
		b.Position.Lat, b.Position.Lng,
		nullString(b.Address),
		b.Price.Amount,
		b.Price.Currency,
		b.DurationMin,
		nullString(b.Notes),
		b.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Booking, error) {
	row := s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, string(id))
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, at time.Time, by Role) (bool, error) {
	var cancelledBy *string
	if to == StatusCancelled {
		r := string(by)
		cancelledBy = &r
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET status = $1,
		    status_version = status_version + 1,
		    confirmed_at = CASE WHEN $1 = 'CONFIRMED' THEN $2 ELSE confirmed_at END,
		    started_at = CASE WHEN $1 = 'IN_PROGRESS' THEN $2 ELSE started_at END,
		    completed_at = CASE WHEN $1 = 'COMPLETED' THEN $2 ELSE completed_at END,
		    cancelled_at = CASE WHEN $1 = 'CANCELLED' THEN $2 ELSE cancelled_at END,
		    cancelled_by = COALESCE($3, cancelled_by)
		WHERE id = $4 AND status = $5 AND status_version = $6`,
		string(to),
		at,
		cancelledBy,
		string(id),
		string(from),
		version,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		}
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	return s.db.QueryRow(ctx, `
		INSERT INTO booking_events (
			booking_id, from_status, to_status, actor_role, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		string(e.BookingID),
		string(e.FromStatus),
		string(e.ToStatus),
		string(e.ActorRole),
		string(e.ActorID),
		e.CreatedAt,
	).Scan(&e.ID)
}

func (s *Store) List(ctx context.Context, q ListQuery) ([]Booking, int, error) {
	partyColumn := "customer_id"
	if q.Actor.Role == RoleProvider {
		partyColumn = "provider_id"
	}
	where := ` WHERE ` + partyColumn + ` = $1 AND ($2 = '' OR status = $2)`
	args := []any{string(q.Actor.ID), string(q.Status)}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM bookings`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings`+where+` ORDER BY created_at DESC, id LIMIT $3 OFFSET $4`,
		append(args, q.Limit, q.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	out, err := collectBookings(rows)
	return out, total, err
}

func (s *Store) ActiveByProvider(ctx context.Context, providerID types.ID) ([]Booking, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE provider_id = $1 AND status IN ('CONFIRMED', 'IN_PROGRESS')
		ORDER BY id`, string(providerID),
	)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (s *Store) HasInProgress(ctx context.Context, customerID, providerID types.ID) (bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE customer_id = $1 AND provider_id = $2 AND status = 'IN_PROGRESS'
		)`, string(customerID), string(providerID),
	)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	defer rows.Close()
	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var address, notes, cancelledBy sql.NullString
	var confirmedAt, startedAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&b.ID, &b.Status, &b.StatusVersion, &b.CustomerID, &b.ProviderID, &b.OfferingID, &b.VehicleID,
		&b.Position.Lat, &b.Position.Lng, &address, &b.Price.Amount, &b.Price.Currency, &b.DurationMin, &notes,
		&b.CreatedAt, &confirmedAt, &startedAt, &completedAt, &cancelledAt, &cancelledBy,
	)
	if err != nil {
		return nil, err
	}
	b.Address = address.String
	b.Notes = notes.String
	b.ConfirmedAt = toTimePtr(confirmedAt)
	b.StartedAt = toTimePtr(startedAt)
	b.CompletedAt = toTimePtr(completedAt)
	b.CancelledAt = toTimePtr(cancelledAt)
	if cancelledBy.Valid {
		r := Role(cancelledBy.String)
		b.CancelledBy = &r
	}
	if b.Price.Currency == "" {
		b.Price.Currency = types.DefaultCurrency
	}
	return &b, nil
}

func nullString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
