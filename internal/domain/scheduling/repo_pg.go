package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotbook/scheduler/internal/platform/db"
)

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const apptCols = `id, business_id, provider_id, customer_id, service_id, start_time, end_time,
	notes, is_deleted, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.BusinessID, &a.ProviderID, &a.CustomerID, &a.ServiceID,
		&a.StartTime, &a.EndTime, &a.Notes, &a.IsDeleted, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func collectAppointments(rows pgx.Rows) ([]*Appointment, error) {
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func mapWriteErr(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsExclusionViolation(err):
		return ErrConflict
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: referenced record does not exist", ErrNotFound)
	}
	return err
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (business_id, provider_id, customer_id, service_id, start_time, end_time, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at, updated_at`,
		a.BusinessID, a.ProviderID, a.CustomerID, a.ServiceID, a.StartTime, a.EndTime, a.Notes,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return mapWriteErr(err)
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET provider_id=$3, customer_id=$4, service_id=$5,
			start_time=$6, end_time=$7, notes=$8, updated_at=NOW()
		WHERE business_id = $1 AND id = $2 AND NOT is_deleted
		RETURNING updated_at`,
		a.BusinessID, a.ID, a.ProviderID, a.CustomerID, a.ServiceID, a.StartTime, a.EndTime, a.Notes,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return mapWriteErr(err)
}

func (r *appointmentRepoPG) SoftDelete(ctx context.Context, businessID, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET is_deleted = TRUE, updated_at = NOW()
		WHERE business_id = $1 AND id = $2 AND NOT is_deleted`, businessID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, businessID, id int64) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE business_id = $1 AND id = $2`, businessID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (r *appointmentRepoPG) ListOverlapping(ctx context.Context, providerID int64, from, to time.Time) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointments
		WHERE provider_id = $1 AND NOT is_deleted AND start_time < $3 AND end_time > $2
		ORDER BY start_time`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *appointmentRepoPG) ListStartingIn(ctx context.Context, businessID int64, from, to time.Time) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointments
		WHERE business_id = $1 AND NOT is_deleted
			AND start_time >= $2 AND start_time < $3
		ORDER BY start_time`, businessID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *appointmentRepoPG) ListDay(ctx context.Context, businessID int64, day time.Time) ([]*DayAppointment, error) {
	from := DateOf(day)
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT a.id, a.business_id, a.provider_id, a.customer_id, a.service_id, a.start_time, a.end_time,
			a.notes, a.is_deleted, a.created_at, a.updated_at,
			p.name, c.name, s.name
		FROM appointments a
		JOIN providers p ON p.id = a.provider_id
		LEFT JOIN customers c ON c.id = a.customer_id
		LEFT JOIN services s ON s.id = a.service_id
		WHERE a.business_id = $1 AND NOT a.is_deleted
			AND a.start_time >= $2 AND a.start_time < $3
		ORDER BY a.start_time DESC`, businessID, from, from.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*DayAppointment
	for rows.Next() {
		var d DayAppointment
		a := &d.Appointment
		if err := rows.Scan(&a.ID, &a.BusinessID, &a.ProviderID, &a.CustomerID, &a.ServiceID,
			&a.StartTime, &a.EndTime, &a.Notes, &a.IsDeleted, &a.CreatedAt, &a.UpdatedAt,
			&d.ProviderName, &d.CustomerName, &d.ServiceName); err != nil {
			return nil, err
		}
		items = append(items, &d)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) CountDay(ctx context.Context, businessID int64, day time.Time) (int, error) {
	from := DateOf(day)
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE business_id = $1 AND NOT is_deleted
			AND start_time >= $2 AND start_time < $3`,
		businessID, from, from.AddDate(0, 0, 1)).Scan(&n)
	return n, err
}

// =========== Schedule Repository ===========

type scheduleRepoPG struct{ pool *pgxpool.Pool }

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository {
	return &scheduleRepoPG{pool: pool}
}

func (r *scheduleRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *scheduleRepoPG) ListIntersecting(ctx context.Context, providerIDs []int64, from, to time.Time) ([]*ProviderSchedule, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, provider_id, day_of_week, start_time, end_time, valid_from, valid_until
		FROM provider_schedules
		WHERE provider_id = ANY($1) AND valid_from <= $3 AND (valid_until IS NULL OR valid_until >= $2)
		ORDER BY provider_id, day_of_week, valid_from`,
		providerIDs, DateOf(from), DateOf(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*ProviderSchedule
	for rows.Next() {
		var (
			s          ProviderSchedule
			day        int16
			start, end pgtype.Time
		)
		if err := rows.Scan(&s.ID, &s.ProviderID, &day, &start, &end, &s.ValidFrom, &s.ValidUntil); err != nil {
			return nil, err
		}
		s.DayOfWeek = time.Weekday(day)
		s.StartTime = clockFromPG(start)
		s.EndTime = clockFromPG(end)
		items = append(items, &s)
	}
	return items, rows.Err()
}

func (r *scheduleRepoPG) CreateMany(ctx context.Context, versions []*ProviderSchedule) error {
	if len(versions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, v := range versions {
		batch.Queue(`
			INSERT INTO provider_schedules (provider_id, day_of_week, start_time, end_time, valid_from, valid_until)
			VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			v.ProviderID, int16(v.DayOfWeek), v.StartTime.pg(), v.EndTime.pg(), DateOf(v.ValidFrom), v.ValidUntil)
	}

	br := r.conn(ctx).SendBatch(ctx, batch)
	defer br.Close()
	for _, v := range versions {
		if err := br.QueryRow().Scan(&v.ID); err != nil {
			return fmt.Errorf("insert schedule version: %w", err)
		}
	}
	return br.Close()
}

func (r *scheduleRepoPG) CloseCurrent(ctx context.Context, providerID int64, today time.Time) (int64, error) {
	today = DateOf(today)
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE provider_schedules SET valid_until = $3
		WHERE provider_id = $1 AND valid_from < $2 AND (valid_until IS NULL OR valid_until >= $2)`,
		providerID, today, today.AddDate(0, 0, -1))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *scheduleRepoPG) DeleteNotYetEffective(ctx context.Context, providerID int64, today time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM provider_schedules WHERE provider_id = $1 AND valid_from >= $2`, providerID, DateOf(today))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// =========== References ===========

type referenceRepoPG struct{ pool *pgxpool.Pool }

func NewReferenceRepoPG(pool *pgxpool.Pool) ReferenceChecker {
	return &referenceRepoPG{pool: pool}
}

func (r *referenceRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *referenceRepoPG) CustomerBelongs(ctx context.Context, businessID, customerID int64) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1 AND business_id = $2)`, customerID, businessID).Scan(&ok)
	return ok, err
}

func (r *referenceRepoPG) ServiceBelongs(ctx context.Context, businessID, serviceID int64) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM services WHERE id = $1 AND business_id = $2)`, serviceID, businessID).Scan(&ok)
	return ok, err
}

// =========== Transactor ===========

type pgTransactor struct{ pool *pgxpool.Pool }

func NewTransactorPG(pool *pgxpool.Pool) Transactor {
	return &pgTransactor{pool: pool}
}

func (t *pgTransactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, t.pool, fn)
}

func (t *pgTransactor) LockProvider(ctx context.Context, providerID int64) error {
	return db.LockProvider(ctx, providerID)
}
