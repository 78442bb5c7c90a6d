package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"transport-cost/core/settings"
	"transport-cost/core/toll"
	"transport-cost/core/types"
	"transport-cost/internal/errors"
)

// timeLayout is fixed width so text columns sort chronologically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS routes (
		id TEXT PRIMARY KEY,
		business_entity_id TEXT NOT NULL,
		transport_type_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cost_settings (
		route_id TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		business_entity_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS toll_rate_overrides (
		id TEXT PRIMARY KEY,
		business_entity_id TEXT NOT NULL,
		country_code TEXT NOT NULL,
		vehicle_class TEXT NOT NULL,
		rate_multiplier TEXT NOT NULL,
		route_type TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		UNIQUE (business_entity_id, country_code, vehicle_class)
	)`,
	`CREATE TABLE IF NOT EXISTS cost_breakdowns (
		id TEXT PRIMARY KEY,
		route_id TEXT NOT NULL,
		total_cost TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		payload TEXT NOT NULL,
		calculated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cost_breakdowns_route ON cost_breakdowns (route_id, calculated_at)`,
}

// SQLStore is a database/sql backed Store for SQLite and PostgreSQL
type SQLStore struct {
	DB      *sql.DB
	backend Backend
}

// OpenSQL opens and migrates a SQL store
func OpenSQL(backend Backend, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, errors.Config("database dsn is empty", nil)
	}

	var (
		db  *sql.DB
		err error
	)
	switch backend {
	case BackendSQLite:
		if dsn != ":memory:" && !strings.Contains(dsn, "?") {
			dsn += "?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on"
		}
		db, err = sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, errors.Wrap(errors.TypeConfig, "open sqlite database", err)
		}
		// SQLite works best with a single writer; it also keeps :memory: on one connection
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(time.Hour)
	case BackendPostgres:
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, errors.Wrap(errors.TypeConfig, "open postgres database", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	default:
		return nil, errors.Newf(errors.TypeConfig, "unsupported SQL backend: %s", backend)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(errors.TypeConfig, err, "verify %s connection", backend)
	}

	s := &SQLStore{DB: db, backend: backend}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an already opened database
func NewSQLStore(db *sql.DB, backend Backend) *SQLStore {
	return &SQLStore{DB: db, backend: backend}
}

// Migrate creates the tables if they do not exist
func (s *SQLStore) Migrate(ctx context.Context) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return errors.Internal("migrate: begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Internal("migrate: create schema", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Internal("migrate: commit", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL
func (s *SQLStore) rebind(q string) string {
	if s.backend != BackendPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SaveRoute implements Store
func (s *SQLStore) SaveRoute(ctx context.Context, route *types.Route, transportTypeID string) error {
	payload, err := json.Marshal(route)
	if err != nil {
		return errors.Internal("save route: marshal", err)
	}
	_, err = s.DB.ExecContext(ctx, s.rebind(`
	INSERT INTO routes (id, business_entity_id, transport_type_id, payload, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE
	SET business_entity_id = excluded.business_entity_id,
		transport_type_id = excluded.transport_type_id,
		payload = excluded.payload`),
		route.ID.String(), route.BusinessEntityID.String(), transportTypeID, string(payload), formatTime(route.CreatedAt),
	)
	if err != nil {
		return errors.Wrapf(errors.TypeInternal, err, "save route %s", route.ID)
	}
	return nil
}

// GetRoute implements Store
func (s *SQLStore) GetRoute(ctx context.Context, id uuid.UUID) (*types.Route, error) {
	var payload string
	err := s.DB.QueryRowContext(ctx, s.rebind(`SELECT payload FROM routes WHERE id = ?`), id.String()).Scan(&payload)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("route", id.String())
	}
	if err != nil {
		return nil, errors.Wrapf(errors.TypeInternal, err, "get route %s", id)
	}
	var route types.Route
	if err := json.Unmarshal([]byte(payload), &route); err != nil {
		return nil, errors.Wrapf(errors.TypeInternal, err, "decode route %s", id)
	}
	return &route, nil
}

// LookupRoute implements settings.RouteDirectory
func (s *SQLStore) LookupRoute(ctx context.Context, id uuid.UUID) (*settings.RouteInfo, error) {
	var biz, transportType string
	err := s.DB.QueryRowContext(ctx,
		s.rebind(`SELECT business_entity_id, transport_type_id FROM routes WHERE id = ?`), id.String(),
	).Scan(&biz, &transportType)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("route", id.String())
	}
	if err != nil {
		return nil, errors.Wrapf(errors.TypeInternal, err, "lookup route %s", id)
	}
	bizID, err := uuid.Parse(biz)
	if err != nil {
		return nil, errors.Wrapf(errors.TypeInternal, err, "route %s has invalid business entity id", id)
	}
	return &settings.RouteInfo{RouteID: id, BusinessEntityID: bizID, TransportTypeID: transportType}, nil
}

// GetSettings implements settings.Store
func (s *SQLStore) GetSettings(ctx context.Context, routeID uuid.UUID) (*types.CostSettings, error) {
	var payload string
	err := s.DB.QueryRowContext(ctx,
		s.rebind(`SELECT payload FROM cost_settings WHERE route_id = ?`), routeID.String(),
	).Scan(&payload)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("cost settings", routeID.String())
	}
	if err != nil {
		return nil, errors.Wrapf(errors.TypeInternal, err, "get cost settings for route %s", routeID)
	}
	var cs types.CostSettings
	if err := json.Unmarshal([]byte(payload), &cs); err != nil {
		return nil, errors.Wrapf(errors.TypeInternal, err, "decode cost settings for route %s", routeID)
	}
	return &cs, nil
}

// SaveSettings implements settings.Store in a single transaction
func (s *SQLStore) SaveSettings(ctx context.Context, cs *types.CostSettings) error {
	payload, err := json.Marshal(cs)
	if err != nil {
		return errors.Internal("save cost settings: marshal", err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return errors.Internal("save cost settings: begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, s.rebind(`
	INSERT INTO cost_settings (route_id, id, business_entity_id, payload, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (route_id) DO UPDATE
	SET id = excluded.id,
		business_entity_id = excluded.business_entity_id,
		payload = excluded.payload,
		updated_at = excluded.updated_at`),
		cs.RouteID.String(), cs.ID.String(), cs.BusinessEntityID.String(), string(payload), formatTime(cs.UpdatedAt),
	)
	if err != nil {
		return errors.Wrapf(errors.TypeInternal, err, "save cost settings for route %s", cs.RouteID)
	}
	if err := tx.Commit(); err != nil {
		return errors.Internal("save cost settings: commit", err)
	}
	return nil
}

// FindOverride implements toll.OverrideStore
func (s *SQLStore) FindOverride(ctx context.Context, businessID uuid.UUID, country, vehicleClass string) (*toll.Override, error) {
	rows, err := s.DB.QueryContext(ctx, s.rebind(`
	SELECT id, business_entity_id, country_code, vehicle_class, rate_multiplier, route_type, created_at
	FROM toll_rate_overrides
	WHERE business_entity_id = ? AND country_code = ? AND vehicle_class = ?`),
		businessID.String(), country, vehicleClass,
	)
	if err != nil {
		return nil, errors.Internal("find toll override: query", err)
	}
	defer rows.Close()

	overrides, err := scanOverrides(rows)
	if err != nil {
		return nil, err
	}
	if len(overrides) == 0 {
		return nil, nil
	}
	return &overrides[0], nil
}

// SaveOverride implements toll.OverrideStore; the tuple is unique
func (s *SQLStore) SaveOverride(ctx context.Context, o *toll.Override) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	_, err := s.DB.ExecContext(ctx, s.rebind(`
	INSERT INTO toll_rate_overrides (id, business_entity_id, country_code, vehicle_class, rate_multiplier, route_type, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (business_entity_id, country_code, vehicle_class) DO UPDATE
	SET rate_multiplier = excluded.rate_multiplier,
		route_type = excluded.route_type`),
		o.ID.String(), o.BusinessEntityID.String(), o.CountryCode, o.VehicleClass,
		o.RateMultiplier.String(), o.RouteType, formatTime(o.CreatedAt),
	)
	if err != nil {
		return errors.Wrapf(errors.TypeInternal, err, "save toll override %s/%s", o.CountryCode, o.VehicleClass)
	}
	return nil
}

// ListOverrides implements toll.OverrideStore
func (s *SQLStore) ListOverrides(ctx context.Context, businessID uuid.UUID) ([]toll.Override, error) {
	rows, err := s.DB.QueryContext(ctx, s.rebind(`
	SELECT id, business_entity_id, country_code, vehicle_class, rate_multiplier, route_type, created_at
	FROM toll_rate_overrides
	WHERE business_entity_id = ?
	ORDER BY country_code, vehicle_class`),
		businessID.String(),
	)
	if err != nil {
		return nil, errors.Internal("list toll overrides: query", err)
	}
	defer rows.Close()
	return scanOverrides(rows)
}

func scanOverrides(rows *sql.Rows) ([]toll.Override, error) {
	var out []toll.Override
	for rows.Next() {
		var id, biz, multiplier, created string
		var o toll.Override
		if err := rows.Scan(&id, &biz, &o.CountryCode, &o.VehicleClass, &multiplier, &o.RouteType, &created); err != nil {
			return nil, errors.Internal("scan toll override", err)
		}
		var err error
		if o.ID, err = uuid.Parse(id); err != nil {
			return nil, errors.Internal("toll override id", err)
		}
		if o.BusinessEntityID, err = uuid.Parse(biz); err != nil {
			return nil, errors.Internal("toll override business entity id", err)
		}
		if o.RateMultiplier, err = decimal.NewFromString(multiplier); err != nil {
			return nil, errors.Internal("toll override multiplier", err)
		}
		if o.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, errors.Internal("toll override created_at", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal("toll overrides: row iteration", err)
	}
	return out, nil
}

// SaveBreakdown implements Store
func (s *SQLStore) SaveBreakdown(ctx context.Context, b *types.CostBreakdown) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return errors.Internal("save breakdown: marshal", err)
	}
	_, err = s.DB.ExecContext(ctx, s.rebind(`
	INSERT INTO cost_breakdowns (id, route_id, total_cost, fingerprint, payload, calculated_at)
	VALUES (?, ?, ?, ?, ?, ?)`),
		b.ID.String(), b.RouteID.String(), b.TotalCost.String(), b.Metadata.Fingerprint,
		string(payload), formatTime(b.Metadata.CalculatedAt),
	)
	if err != nil {
		return errors.Wrapf(errors.TypeInternal, err, "save breakdown for route %s", b.RouteID)
	}
	return nil
}

// LatestBreakdown implements Store
func (s *SQLStore) LatestBreakdown(ctx context.Context, routeID uuid.UUID) (*types.CostBreakdown, error) {
	var payload string
	err := s.DB.QueryRowContext(ctx, s.rebind(`
	SELECT payload FROM cost_breakdowns
	WHERE route_id = ?
	ORDER BY calculated_at DESC, id DESC
	LIMIT 1`), routeID.String()).Scan(&payload)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("cost breakdown for route", routeID.String())
	}
	if err != nil {
		return nil, errors.Wrapf(errors.TypeInternal, err, "latest breakdown for route %s", routeID)
	}
	var b types.CostBreakdown
	if err := json.Unmarshal([]byte(payload), &b); err != nil {
		return nil, errors.Wrapf(errors.TypeInternal, err, "decode breakdown for route %s", routeID)
	}
	return &b, nil
}

// Close implements Store
func (s *SQLStore) Close() error {
	if s.DB == nil {
		return nil
	}
	if err := s.DB.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}
