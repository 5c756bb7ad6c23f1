// Package sqlite implements the persistence collaborator on an embedded
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/wastemaster/wastemaster/core/model"
	"github.com/wastemaster/wastemaster/core/recurrence"
	"github.com/wastemaster/wastemaster/core/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS customers (
    id      TEXT PRIMARY KEY,
    name    TEXT NOT NULL,
    address TEXT NOT NULL DEFAULT '',
    active  INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS categories (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL,
    collection_day INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS services (
    id          TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL,
    category_id TEXT NOT NULL,
    frequency   INTEGER NOT NULL,
    interval    INTEGER NOT NULL,
    weekdays    TEXT NOT NULL DEFAULT '',
    rule_start  INTEGER NOT NULL,
    rule_end    INTEGER,
    capacity    INTEGER NOT NULL,
    status      INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS vehicles (
    id        TEXT PRIMARY KEY,
    plate     TEXT NOT NULL DEFAULT '',
    capacity  INTEGER NOT NULL,
    available INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS operators (
    id        TEXT PRIMARY KEY,
    name      TEXT NOT NULL DEFAULT '',
    capacity  INTEGER NOT NULL,
    available INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS occurrences (
    id                   TEXT PRIMARY KEY,
    service_id           TEXT NOT NULL,
    customer_id          TEXT NOT NULL,
    category_id          TEXT NOT NULL DEFAULT '',
    date                 INTEGER NOT NULL,
    status               INTEGER NOT NULL,
    vehicle_id           TEXT NOT NULL DEFAULT '',
    operator_id          TEXT NOT NULL DEFAULT '',
    vehicle_reservation  TEXT NOT NULL DEFAULT '',
    operator_reservation TEXT NOT NULL DEFAULT '',
    window_start         INTEGER NOT NULL DEFAULT 0,
    window_end           INTEGER NOT NULL DEFAULT 0,
    started_at           INTEGER,
    completed_at         INTEGER,
    UNIQUE (service_id, date)
);
CREATE TABLE IF NOT EXISTS price_schedules (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    service_id  TEXT NOT NULL,
    valid_from  INTEGER NOT NULL,
    valid_to    INTEGER,
    unit_price  TEXT NOT NULL,
    currency    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS line_items (
    id            TEXT PRIMARY KEY,
    occurrence_id TEXT NOT NULL UNIQUE,
    service_id    TEXT NOT NULL,
    customer_id   TEXT NOT NULL,
    description   TEXT NOT NULL,
    date          INTEGER NOT NULL,
    amount        TEXT NOT NULL,
    currency      TEXT NOT NULL,
    created_at    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS held_occurrences (
    occurrence_id TEXT PRIMARY KEY,
    reason        TEXT NOT NULL
);
`

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store persists the scheduling domain in SQLite. All methods are safe for
// concurrent use; SQLite serializes writers internally.
type Store struct {
	db *sql.DB
	q  querier
}

// New opens or creates the database at path and ensures the schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, q: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// WithTx runs fn against a transaction-bound view of the store. A nested
// call inside a transaction reuses it.
func (s *Store) WithTx(ctx context.Context, fn func(store.Store) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", store.ErrUnavailable, err)
	}
	if err := fn(&Store{db: s.db, q: tx}); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("rollback: %v (cause: %w)", rerr, err)
		}
		return err
	}
	return tx.Commit()
}

func (s *Store) SaveCustomer(ctx context.Context, c model.Customer) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO customers (id, name, address, active)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET name=excluded.name, address=excluded.address, active=excluded.active`,
		c.ID, c.Name, c.Address, boolInt(c.Active))
	return wrap(err)
}

func (s *Store) GetCustomer(ctx context.Context, id string) (model.Customer, error) {
	var c model.Customer
	var active int
	err := s.q.QueryRowContext(ctx, `SELECT id, name, address, active FROM customers WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Address, &active)
	if err == sql.ErrNoRows {
		return c, store.ErrNotFound
	}
	c.Active = active != 0
	return c, wrap(err)
}

func (s *Store) SaveCategory(ctx context.Context, c model.WasteCategory) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO categories (id, name, collection_day)
        VALUES (?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET name=excluded.name, collection_day=excluded.collection_day`,
		c.ID, c.Name, int(c.CollectionDay))
	return wrap(err)
}

func (s *Store) GetCategory(ctx context.Context, id string) (model.WasteCategory, error) {
	var c model.WasteCategory
	var day int
	err := s.q.QueryRowContext(ctx, `SELECT id, name, collection_day FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &day)
	if err == sql.ErrNoRows {
		return c, store.ErrNotFound
	}
	c.CollectionDay = time.Weekday(day)
	return c, wrap(err)
}

func (s *Store) SaveService(ctx context.Context, svc model.Service) error {
	if err := svc.Validate(); err != nil {
		return err
	}
	_, err := s.q.ExecContext(ctx, `INSERT INTO services
        (id, customer_id, category_id, frequency, interval, weekdays, rule_start, rule_end, capacity, status)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            customer_id=excluded.customer_id, category_id=excluded.category_id,
            frequency=excluded.frequency, interval=excluded.interval, weekdays=excluded.weekdays,
            rule_start=excluded.rule_start, rule_end=excluded.rule_end,
            capacity=excluded.capacity, status=excluded.status`,
		svc.ID, svc.CustomerID, svc.CategoryID,
		int(svc.Rule.Frequency), svc.Rule.Interval, weekdaysString(svc.Rule.Weekdays),
		svc.Rule.Start.Unix(), nullableUnix(svc.Rule.End),
		int(svc.Capacity), int(svc.Status))
	return wrap(err)
}

const serviceColumns = `id, customer_id, category_id, frequency, interval, weekdays, rule_start, rule_end, capacity, status`

func (s *Store) GetService(ctx context.Context, id string) (model.Service, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = ?`, id)
	svc, err := scanService(row)
	if err == sql.ErrNoRows {
		return svc, store.ErrNotFound
	}
	return svc, wrap(err)
}

func (s *Store) ListActiveServices(ctx context.Context) ([]model.Service, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE status = ? ORDER BY id`, int(model.ServiceActive))
	if err != nil {
		return nil, wrap(err)
	}
	defer func() { _ = rows.Close() }()
	var out []model.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, wrap(err)
		}
		out = append(out, svc)
	}
	return out, wrap(rows.Err())
}

func (s *Store) UpdateServiceStatus(ctx context.Context, id string, status model.ServiceStatus) error {
	res, err := s.q.ExecContext(ctx, `UPDATE services SET status = ? WHERE id = ?`, int(status), id)
	if err != nil {
		return wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SaveVehicle(ctx context.Context, v model.Vehicle) error {
	if err := v.Validate(); err != nil {
		return err
	}
	_, err := s.q.ExecContext(ctx, `INSERT INTO vehicles (id, plate, capacity, available)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET plate=excluded.plate, capacity=excluded.capacity, available=excluded.available`,
		v.ID, v.Plate, int(v.Capacity), boolInt(v.Available))
	return wrap(err)
}

func (s *Store) ListVehicles(ctx context.Context) ([]model.Vehicle, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, plate, capacity, available FROM vehicles ORDER BY id`)
	if err != nil {
		return nil, wrap(err)
	}
	defer func() { _ = rows.Close() }()
	var out []model.Vehicle
	for rows.Next() {
		var v model.Vehicle
		var capacity, available int
		if err := rows.Scan(&v.ID, &v.Plate, &capacity, &available); err != nil {
			return nil, wrap(err)
		}
		v.Capacity = model.CapacityClass(capacity)
		v.Available = available != 0
		out = append(out, v)
	}
	return out, wrap(rows.Err())
}

func (s *Store) SaveOperator(ctx context.Context, o model.Operator) error {
	if err := o.Validate(); err != nil {
		return err
	}
	_, err := s.q.ExecContext(ctx, `INSERT INTO operators (id, name, capacity, available)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET name=excluded.name, capacity=excluded.capacity, available=excluded.available`,
		o.ID, o.Name, int(o.Capacity), boolInt(o.Available))
	return wrap(err)
}

func (s *Store) ListOperators(ctx context.Context) ([]model.Operator, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, name, capacity, available FROM operators ORDER BY id`)
	if err != nil {
		return nil, wrap(err)
	}
	defer func() { _ = rows.Close() }()
	var out []model.Operator
	for rows.Next() {
		var o model.Operator
		var capacity, available int
		if err := rows.Scan(&o.ID, &o.Name, &capacity, &available); err != nil {
			return nil, wrap(err)
		}
		o.Capacity = model.CapacityClass(capacity)
		o.Available = available != 0
		out = append(out, o)
	}
	return out, wrap(rows.Err())
}

const occurrenceColumns = `id, service_id, customer_id, category_id, date, status,
    vehicle_id, operator_id, vehicle_reservation, operator_reservation,
    window_start, window_end, started_at, completed_at`

func (s *Store) SaveOccurrence(ctx context.Context, o model.Occurrence) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO occurrences
        (id, service_id, customer_id, category_id, date, status,
         vehicle_id, operator_id, vehicle_reservation, operator_reservation,
         window_start, window_end, started_at, completed_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.ServiceID, o.CustomerID, o.CategoryID, o.Date.Unix(), int(o.Status),
		o.VehicleID, o.OperatorID, o.VehicleReservation, o.OperatorReservation,
		o.WindowStart.Unix(), o.WindowEnd.Unix(),
		nullableUnix(o.StartedAt), nullableUnix(o.CompletedAt))
	return wrap(err)
}

func (s *Store) UpdateOccurrence(ctx context.Context, o model.Occurrence) error {
	res, err := s.q.ExecContext(ctx, `UPDATE occurrences SET
        status = ?, vehicle_id = ?, operator_id = ?,
        vehicle_reservation = ?, operator_reservation = ?,
        window_start = ?, window_end = ?, started_at = ?, completed_at = ?
        WHERE id = ?`,
		int(o.Status), o.VehicleID, o.OperatorID,
		o.VehicleReservation, o.OperatorReservation,
		o.WindowStart.Unix(), o.WindowEnd.Unix(),
		nullableUnix(o.StartedAt), nullableUnix(o.CompletedAt), o.ID)
	if err != nil {
		return wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetOccurrence(ctx context.Context, id string) (model.Occurrence, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+occurrenceColumns+` FROM occurrences WHERE id = ?`, id)
	occ, err := scanOccurrence(row)
	if err == sql.ErrNoRows {
		return occ, store.ErrNotFound
	}
	return occ, wrap(err)
}

func (s *Store) HasOccurrence(ctx context.Context, serviceID string, date time.Time) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(1) FROM occurrences WHERE service_id = ? AND date = ?`,
		serviceID, model.DateOf(date).Unix()).Scan(&n)
	return n > 0, wrap(err)
}

func (s *Store) ListOccurrencesByStatus(ctx context.Context, statuses ...model.OccurrenceStatus) ([]model.Occurrence, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(statuses))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = int(st)
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+occurrenceColumns+` FROM occurrences WHERE status IN (`+placeholders+`) ORDER BY date, id`, args...)
	if err != nil {
		return nil, wrap(err)
	}
	defer func() { _ = rows.Close() }()
	return collectOccurrences(rows)
}

func (s *Store) ListOpenOccurrencesByService(ctx context.Context, serviceID string, from time.Time) ([]model.Occurrence, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+occurrenceColumns+` FROM occurrences
         WHERE service_id = ? AND date >= ? AND status IN (?, ?, ?) ORDER BY date, id`,
		serviceID, model.DateOf(from).Unix(),
		int(model.StatusPlanned), int(model.StatusScheduled), int(model.StatusInProgress))
	if err != nil {
		return nil, wrap(err)
	}
	defer func() { _ = rows.Close() }()
	return collectOccurrences(rows)
}

func (s *Store) SavePriceSchedule(ctx context.Context, p model.PriceSchedule) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO price_schedules
        (service_id, valid_from, valid_to, unit_price, currency) VALUES (?, ?, ?, ?, ?)`,
		p.ServiceID, p.From.Unix(), nullableUnix(p.To), p.UnitPrice.String(), p.Currency)
	return wrap(err)
}

func (s *Store) ListPriceSchedules(ctx context.Context, serviceID string) ([]model.PriceSchedule, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT service_id, valid_from, valid_to, unit_price, currency
         FROM price_schedules WHERE service_id = ? ORDER BY valid_from`, serviceID)
	if err != nil {
		return nil, wrap(err)
	}
	defer func() { _ = rows.Close() }()
	var out []model.PriceSchedule
	for rows.Next() {
		var p model.PriceSchedule
		var from int64
		var to sql.NullInt64
		var price string
		if err := rows.Scan(&p.ServiceID, &from, &to, &price, &p.Currency); err != nil {
			return nil, wrap(err)
		}
		p.From = time.Unix(from, 0).UTC()
		if to.Valid {
			t := time.Unix(to.Int64, 0).UTC()
			p.To = &t
		}
		p.UnitPrice, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("parse unit price %q: %w", price, err)
		}
		out = append(out, p)
	}
	return out, wrap(rows.Err())
}

func (s *Store) IsBilled(ctx context.Context, occurrenceID string) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(1) FROM line_items WHERE occurrence_id = ?`, occurrenceID).Scan(&n)
	return n > 0, wrap(err)
}

// AppendLineItem inserts the line item. The UNIQUE constraint on
// occurrence_id doubles as the processed marker, so the item and the marker
// commit in one statement.
func (s *Store) AppendLineItem(ctx context.Context, item model.BillingLineItem) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO line_items
        (id, occurrence_id, service_id, customer_id, description, date, amount, currency, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.OccurrenceID, item.ServiceID, item.CustomerID, item.Description,
		item.Date.Unix(), item.Amount.String(), item.Currency, item.CreatedAt.Unix())
	return wrap(err)
}

func (s *Store) HoldOccurrence(ctx context.Context, occurrenceID, reason string) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO held_occurrences (occurrence_id, reason)
        VALUES (?, ?) ON CONFLICT(occurrence_id) DO UPDATE SET reason=excluded.reason`,
		occurrenceID, reason)
	return wrap(err)
}

func (s *Store) ListLineItems(ctx context.Context) ([]model.BillingLineItem, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, occurrence_id, service_id, customer_id, description, date, amount, currency, created_at
         FROM line_items ORDER BY customer_id, date, id`)
	if err != nil {
		return nil, wrap(err)
	}
	defer func() { _ = rows.Close() }()
	var out []model.BillingLineItem
	for rows.Next() {
		var item model.BillingLineItem
		var date, created int64
		var amount string
		if err := rows.Scan(&item.ID, &item.OccurrenceID, &item.ServiceID, &item.CustomerID,
			&item.Description, &date, &amount, &item.Currency, &created); err != nil {
			return nil, wrap(err)
		}
		item.Date = time.Unix(date, 0).UTC()
		item.CreatedAt = time.Unix(created, 0).UTC()
		item.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		out = append(out, item)
	}
	return out, wrap(rows.Err())
}

func (s *Store) ListHeld(ctx context.Context) (map[string]string, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT occurrence_id, reason FROM held_occurrences`)
	if err != nil {
		return nil, wrap(err)
	}
	defer func() { _ = rows.Close() }()
	out := make(map[string]string)
	for rows.Next() {
		var id, reason string
		if err := rows.Scan(&id, &reason); err != nil {
			return nil, wrap(err)
		}
		out[id] = reason
	}
	return out, wrap(rows.Err())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanService(row rowScanner) (model.Service, error) {
	var svc model.Service
	var frequency, interval, capacity, status int
	var weekdays string
	var start int64
	var end sql.NullInt64
	err := row.Scan(&svc.ID, &svc.CustomerID, &svc.CategoryID,
		&frequency, &interval, &weekdays, &start, &end, &capacity, &status)
	if err != nil {
		return svc, err
	}
	svc.Rule = recurrence.Rule{
		Frequency: recurrence.Frequency(frequency),
		Interval:  interval,
		Weekdays:  parseWeekdays(weekdays),
		Start:     time.Unix(start, 0).UTC(),
	}
	if end.Valid {
		t := time.Unix(end.Int64, 0).UTC()
		svc.Rule.End = &t
	}
	svc.Capacity = model.CapacityClass(capacity)
	svc.Status = model.ServiceStatus(status)
	return svc, nil
}

func scanOccurrence(row rowScanner) (model.Occurrence, error) {
	var o model.Occurrence
	var status int
	var date, wstart, wend int64
	var started, completed sql.NullInt64
	err := row.Scan(&o.ID, &o.ServiceID, &o.CustomerID, &o.CategoryID, &date, &status,
		&o.VehicleID, &o.OperatorID, &o.VehicleReservation, &o.OperatorReservation,
		&wstart, &wend, &started, &completed)
	if err != nil {
		return o, err
	}
	o.Date = time.Unix(date, 0).UTC()
	o.Status = model.OccurrenceStatus(status)
	o.WindowStart = time.Unix(wstart, 0).UTC()
	o.WindowEnd = time.Unix(wend, 0).UTC()
	if started.Valid {
		t := time.Unix(started.Int64, 0).UTC()
		o.StartedAt = &t
	}
	if completed.Valid {
		t := time.Unix(completed.Int64, 0).UTC()
		o.CompletedAt = &t
	}
	return o, nil
}

func collectOccurrences(rows *sql.Rows) ([]model.Occurrence, error) {
	var out []model.Occurrence
	for rows.Next() {
		occ, err := scanOccurrence(rows)
		if err != nil {
			return nil, wrap(err)
		}
		out = append(out, occ)
	}
	return out, wrap(rows.Err())
}

// wrap maps driver errors onto the store error taxonomy.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return store.ErrNotFound
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	}
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func weekdaysString(days []time.Weekday) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",")
}

func parseWeekdays(s string) []time.Weekday {
	if s == "" {
		return nil
	}
	var out []time.Weekday
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		out = append(out, time.Weekday(n))
	}
	return out
}
