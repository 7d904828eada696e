package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the slice of pgxpool.Pool the store uses; pgxmock satisfies
// it in tests.
type PgxPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgStore struct {
	pool PgxPool
}

func NewPgStore(pool PgxPool) *PgStore {
	return &PgStore{pool: pool}
}

const reservationColumns = `id, doctor_id, user_id, patient_name, patient_email, patient_phone,
	service_type, start_at, end_at, status, sync_status,
	google_calendar_id, google_event_id, notes, created_at, updated_at`

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialty, calendarID *string

	err := row.Scan(
		&d.ID,
		&d.Name,
		&specialty,
		&calendarID,
		&d.Active,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Specialty = specialty
	d.GoogleCalendarID = calendarID
	return &d, nil
}

func scanReservation(row pgx.Row) (*Reservation, error) {
	var r Reservation
	var phone, calendarID, eventID, notes *string

	err := row.Scan(
		&r.ID,
		&r.DoctorID,
		&r.UserID,
		&r.PatientName,
		&r.PatientEmail,
		&phone,
		&r.ServiceType,
		&r.StartAt,
		&r.EndAt,
		&r.Status,
		&r.SyncStatus,
		&calendarID,
		&eventID,
		&notes,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}

	r.PatientPhone = phone
	r.GoogleCalendarID = calendarID
	r.GoogleEventID = eventID
	r.Notes = notes
	return &r, nil
}

func collectReservations(rows pgx.Rows) ([]Reservation, error) {
	defer rows.Close()

	var result []Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Interface methods

func (s *PgStore) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, specialty, google_calendar_id, active, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (s *PgStore) ListActiveDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, specialty, google_calendar_id, active, created_at, updated_at
		FROM doctors
		WHERE active
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *PgStore) InsertReservation(ctx context.Context, r *Reservation) (*Reservation, error) {
	id := r.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO reservations (
			id, doctor_id, user_id, patient_name, patient_email, patient_phone,
			service_type, start_at, end_at, status, sync_status,
			google_calendar_id, google_event_id, notes, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
		RETURNING `+reservationColumns+`
	`, id, r.DoctorID, r.UserID, r.PatientName, r.PatientEmail, r.PatientPhone,
		r.ServiceType, r.StartAt, r.EndAt, r.Status, r.SyncStatus,
		r.GoogleCalendarID, r.GoogleEventID, r.Notes)

	inserted, err := scanReservation(row)
	if err != nil {
		// The exclusion constraint on (doctor_id, interval) turns the
		// concurrent-create race into a conflict at commit time.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && (pgErr.Code == "23P01" || pgErr.Code == "23505") {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	return inserted, nil
}

func (s *PgStore) GetReservationByID(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE id = $1
	`, id)
	return scanReservation(row)
}

func (s *PgStore) ListByDoctorAndRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time, includeCancelled bool) ([]Reservation, error) {
	sql := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE doctor_id = $1
		  AND start_at < $3
		  AND end_at > $2`
	if !includeCancelled {
		sql += `
		  AND status <> 'cancelled'`
	}
	sql += `
		ORDER BY start_at`

	rows, err := s.pool.Query(ctx, sql, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

func (s *PgStore) ListReservations(ctx context.Context, f ListFilter) ([]Reservation, error) {
	sql := `
		SELECT ` + reservationColumns + `
		FROM reservations`

	var conditions []string
	var args []any

	addArg := func(cond string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if f.DoctorID != nil {
		addArg("doctor_id = $%d", *f.DoctorID)
	}
	if f.UserID != nil {
		addArg("user_id = $%d", *f.UserID)
	}
	if f.Status != nil {
		addArg("status = $%d", *f.Status)
	}
	if f.DayStart != nil {
		addArg("start_at >= $%d", *f.DayStart)
	}
	if f.DayEnd != nil {
		addArg("start_at < $%d", *f.DayEnd)
	}

	if len(conditions) > 0 {
		sql += "\n\t\tWHERE " + strings.Join(conditions, " AND ")
	}
	sql += "\n\t\tORDER BY start_at"

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

func (s *PgStore) ListPendingSync(ctx context.Context, limit int) ([]Reservation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE status = 'confirmed'
		  AND sync_status = 'sync_pending'
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

func (s *PgStore) UpdateReservationStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Reservation, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE reservations
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+reservationColumns+`
	`, id, to, from)

	return scanReservation(row)
}

func (s *PgStore) UpdateReservation(ctx context.Context, id uuid.UUID, upd ReservationUpdate) (*Reservation, error) {
	var fields []string
	var args []any

	set := func(column string, v any) {
		args = append(args, v)
		fields = append(fields, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.StartAt != nil {
		set("start_at", *upd.StartAt)
	}
	if upd.EndAt != nil {
		set("end_at", *upd.EndAt)
	}
	if upd.ServiceType != nil {
		set("service_type", *upd.ServiceType)
	}
	if upd.Notes != nil {
		set("notes", *upd.Notes)
	}
	if upd.Status != nil {
		set("status", *upd.Status)
	}
	if upd.SyncStatus != nil {
		set("sync_status", *upd.SyncStatus)
	}
	if upd.ClearEventID {
		fields = append(fields, "google_event_id = NULL")
	} else if upd.GoogleEventID != nil {
		set("google_event_id", *upd.GoogleEventID)
	}

	if len(fields) == 0 {
		return s.GetReservationByID(ctx, id)
	}

	fields = append(fields, "updated_at = now()")
	args = append(args, id)

	sql := fmt.Sprintf(`
		UPDATE reservations
		SET %s
		WHERE id = $%d
		RETURNING %s
	`, strings.Join(fields, ",\n\t\t    "), len(args), reservationColumns)

	updated, err := scanReservation(s.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && (pgErr.Code == "23P01" || pgErr.Code == "23505") {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	return updated, nil
}
