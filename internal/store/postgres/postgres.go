// Package postgres is the production core.Store backed by a pgx connection
// pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/siteinventory/internal/core"
	"github.com/JonMunkholm/siteinventory/internal/store/sqlutil"
)

//go:embed schema.sql
var schema string

// PostgreSQL error codes mapped to constraint violations.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// PoolOptions tunes the connection pool. Zero values keep pgx defaults.
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store implements core.Store on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ core.Store = (*Store)(nil)

// Open connects to databaseURL, verifies the connection and applies the
// schema.
func Open(ctx context.Context, databaseURL string, opts PoolOptions) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = opts.MinConns
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := New(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool. The schema is not applied.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

// Migrate creates the tables and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ----------------------------------------------------------------------------
// Sites
// ----------------------------------------------------------------------------

var (
	siteSelect = "SELECT " + sqlutil.SelectColumns(sqlutil.SiteColumns) + " FROM sites"
	siteInsert = sqlutil.InsertSQL(sqlutil.Postgres, "sites", sqlutil.SiteColumns)
	siteUpdate = sqlutil.UpdateSQL(sqlutil.Postgres, "sites", sqlutil.SiteColumns)
)

func siteArgs(site *core.Site) []any {
	return []any{
		site.SiteID, site.LegacyID, site.Region5, site.Region13, site.City, site.District,
		site.Latitude, site.Longitude, site.InstallationDate, string(site.Status),
		site.TechnicianName, site.TechnicianEmail,
	}
}

func scanSite(row pgx.Row) (*core.Site, error) {
	var (
		site   core.Site
		status string
	)
	err := row.Scan(&site.ID, &site.SiteID, &site.LegacyID, &site.Region5, &site.Region13,
		&site.City, &site.District, &site.Latitude, &site.Longitude, &site.InstallationDate, &status,
		&site.TechnicianName, &site.TechnicianEmail, &site.CreatedAt, &site.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	site.Status = core.Status(status)
	return &site, nil
}

func (s *Store) FindSiteByKey(ctx context.Context, siteID string) (*core.Site, error) {
	return scanSite(s.pool.QueryRow(ctx, siteSelect+" WHERE site_id = $1", siteID))
}

func (s *Store) GetSite(ctx context.Context, id int64) (*core.Site, error) {
	return scanSite(s.pool.QueryRow(ctx, siteSelect+" WHERE id = $1", id))
}

func (s *Store) CreateSite(ctx context.Context, site *core.Site) error {
	now := s.now().UTC()
	args := append(siteArgs(site), now, now)
	if err := s.pool.QueryRow(ctx, siteInsert, args...).Scan(&site.ID); err != nil {
		return mapError(err)
	}
	site.CreatedAt, site.UpdatedAt = now, now
	return nil
}

func (s *Store) UpdateSite(ctx context.Context, id int64, site *core.Site) error {
	now := s.now().UTC()
	args := append(siteArgs(site), now, id)
	err := s.pool.QueryRow(ctx, siteUpdate, args...).Scan(&site.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrNotFound
	}
	if err != nil {
		return mapError(err)
	}
	site.ID = id
	site.UpdatedAt = now
	return nil
}

func (s *Store) DeleteSite(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "sites", id)
}

func (s *Store) ListSites(ctx context.Context, f core.SiteFilter, opts core.ListOptions) ([]core.Site, int64, error) {
	where, args := sqlutil.SiteWhere(sqlutil.Postgres, f)
	order, err := sqlutil.OrderBy(core.SiteEntity, opts.Sort)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.count(ctx, "sites", where, args)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, siteSelect+where+order+sqlutil.Limit(opts), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query sites: %w", err)
	}
	defer rows.Close()

	var sites []core.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan site: %w", err)
		}
		sites = append(sites, *site)
	}
	return sites, total, rows.Err()
}

func (s *Store) CountSites(ctx context.Context, f core.SiteFilter) (int64, error) {
	where, args := sqlutil.SiteWhere(sqlutil.Postgres, f)
	return s.count(ctx, "sites", where, args)
}

func (s *Store) CountSitesBy(ctx context.Context, field string) (map[string]int64, error) {
	return s.countBy(ctx, core.SiteEntity, "sites", field)
}

// ----------------------------------------------------------------------------
// Devices
// ----------------------------------------------------------------------------

var (
	deviceSelect = "SELECT " + sqlutil.SelectColumns(sqlutil.DeviceColumns) + " FROM devices"
	deviceInsert = sqlutil.InsertSQL(sqlutil.Postgres, "devices", sqlutil.DeviceColumns)
	deviceUpdate = sqlutil.UpdateSQL(sqlutil.Postgres, "devices", sqlutil.DeviceColumns)
)

func deviceArgs(d *core.Device) []any {
	return []any{
		d.NEName, d.SiteID, d.SerialNumber, d.OperatorID, d.IPAddress,
		d.MACAddress, d.ModelNumber, d.Vendor, d.DeviceType, d.EquipmentRole,
		d.Technology, d.Domain, d.SubDomain, string(d.Status), d.InstallationDate,
		d.TechnicianName, d.TechnicianEmail,
	}
}

func scanDevice(row pgx.Row) (*core.Device, error) {
	var (
		d      core.Device
		status string
	)
	err := row.Scan(&d.ID, &d.NEName, &d.SiteID, &d.SerialNumber, &d.OperatorID, &d.IPAddress,
		&d.MACAddress, &d.ModelNumber, &d.Vendor, &d.DeviceType, &d.EquipmentRole,
		&d.Technology, &d.Domain, &d.SubDomain, &status, &d.InstallationDate,
		&d.TechnicianName, &d.TechnicianEmail, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.Status = core.Status(status)
	return &d, nil
}

func (s *Store) FindDeviceByKey(ctx context.Context, neName, siteID string) (*core.Device, error) {
	return scanDevice(s.pool.QueryRow(ctx, deviceSelect+" WHERE ne_name = $1 AND site_id = $2", neName, siteID))
}

func (s *Store) GetDevice(ctx context.Context, id int64) (*core.Device, error) {
	return scanDevice(s.pool.QueryRow(ctx, deviceSelect+" WHERE id = $1", id))
}

func (s *Store) CreateDevice(ctx context.Context, d *core.Device) error {
	now := s.now().UTC()
	args := append(deviceArgs(d), now, now)
	if err := s.pool.QueryRow(ctx, deviceInsert, args...).Scan(&d.ID); err != nil {
		return mapError(err)
	}
	d.CreatedAt, d.UpdatedAt = now, now
	return nil
}

func (s *Store) UpdateDevice(ctx context.Context, id int64, d *core.Device) error {
	now := s.now().UTC()
	args := append(deviceArgs(d), now, id)
	err := s.pool.QueryRow(ctx, deviceUpdate, args...).Scan(&d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrNotFound
	}
	if err != nil {
		return mapError(err)
	}
	d.ID = id
	d.UpdatedAt = now
	return nil
}

func (s *Store) DeleteDevice(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "devices", id)
}

func (s *Store) DeleteDevicesBySite(ctx context.Context, siteID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM devices WHERE site_id = $1", siteID)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ListDevices(ctx context.Context, f core.DeviceFilter, opts core.ListOptions) ([]core.Device, int64, error) {
	where, args := sqlutil.DeviceWhere(sqlutil.Postgres, f)
	order, err := sqlutil.OrderBy(core.DeviceEntity, opts.Sort)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.count(ctx, "devices", where, args)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, deviceSelect+where+order+sqlutil.Limit(opts), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query devices: %w", err)
	}
	defer rows.Close()

	var devices []core.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, *d)
	}
	return devices, total, rows.Err()
}

func (s *Store) CountDevices(ctx context.Context, f core.DeviceFilter) (int64, error) {
	where, args := sqlutil.DeviceWhere(sqlutil.Postgres, f)
	return s.count(ctx, "devices", where, args)
}

func (s *Store) CountDevicesBy(ctx context.Context, field string) (map[string]int64, error) {
	return s.countBy(ctx, core.DeviceEntity, "devices", field)
}

// ----------------------------------------------------------------------------
// Shared
// ----------------------------------------------------------------------------

func (s *Store) deleteByID(ctx context.Context, table string, id int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) count(ctx context.Context, table, where string, args []any) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func (s *Store) countBy(ctx context.Context, entity, table, field string) (map[string]int64, error) {
	col, err := sqlutil.GroupColumn(entity, field)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT COALESCE(NULLIF(%s, ''), $1::text) AS grp, COUNT(*) FROM %s GROUP BY grp", col, table)
	rows, err := s.pool.Query(ctx, query, core.UnknownGroup)
	if err != nil {
		return nil, fmt.Errorf("count %s by %s: %w", table, field, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			key string
			n   int64
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

// mapError turns PostgreSQL constraint errors into *core.ConstraintViolation.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return &core.ConstraintViolation{Kind: core.ConstraintUnique, Constraint: pgErr.ConstraintName, Err: err}
	case codeForeignKeyViolation:
		return &core.ConstraintViolation{Kind: core.ConstraintForeignKey, Constraint: pgErr.ConstraintName, Err: err}
	case codeCheckViolation:
		return &core.ConstraintViolation{Kind: core.ConstraintCheck, Constraint: pgErr.ConstraintName, Err: err}
	}
	return err
}
