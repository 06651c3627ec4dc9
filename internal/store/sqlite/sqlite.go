// Package sqlite is the embedded core.Store backed by modernc.org/sqlite.
// Dates and timestamps are stored as ISO-8601 text.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/JonMunkholm/siteinventory/internal/core"
	"github.com/JonMunkholm/siteinventory/internal/store/sqlutil"
)

//go:embed schema.sql
var schema string

const timestampLayout = time.RFC3339Nano

// Store implements core.Store on a single SQLite file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ core.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path with foreign keys
// and WAL enabled, and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Single writer; also keeps the per-connection pragmas in effect.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

// ----------------------------------------------------------------------------
// Sites
// ----------------------------------------------------------------------------

var (
	siteSelect = "SELECT " + sqlutil.SelectColumns(sqlutil.SiteColumns) + " FROM sites"
	siteInsert = sqlutil.InsertSQL(sqlutil.SQLite, "sites", sqlutil.SiteColumns)
	siteUpdate = sqlutil.UpdateSQL(sqlutil.SQLite, "sites", sqlutil.SiteColumns)
)

func siteArgs(site *core.Site) []any {
	return []any{
		site.SiteID, text(site.LegacyID), site.Region5, site.Region13, site.City, site.District,
		site.Latitude, site.Longitude, core.FormatDate(site.InstallationDate), string(site.Status),
		site.TechnicianName, site.TechnicianEmail,
	}
}

func scanSite(row interface{ Scan(...any) error }) (*core.Site, error) {
	var (
		site             core.Site
		date, status     string
		created, updated string
	)
	err := row.Scan(&site.ID, &site.SiteID, &site.LegacyID, &site.Region5, &site.Region13,
		&site.City, &site.District, &site.Latitude, &site.Longitude, &date, &status,
		&site.TechnicianName, &site.TechnicianEmail, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	site.InstallationDate = core.ToPgDate(date)
	site.Status = core.Status(status)
	site.CreatedAt, _ = time.Parse(timestampLayout, created)
	site.UpdatedAt, _ = time.Parse(timestampLayout, updated)
	return &site, nil
}

func (s *Store) FindSiteByKey(ctx context.Context, siteID string) (*core.Site, error) {
	return scanSite(s.db.QueryRowContext(ctx, siteSelect+" WHERE site_id = ?1", siteID))
}

func (s *Store) GetSite(ctx context.Context, id int64) (*core.Site, error) {
	return scanSite(s.db.QueryRowContext(ctx, siteSelect+" WHERE id = ?1", id))
}

func (s *Store) CreateSite(ctx context.Context, site *core.Site) error {
	now := s.now().UTC()
	ts := now.Format(timestampLayout)
	args := append(siteArgs(site), ts, ts)
	if err := s.db.QueryRowContext(ctx, siteInsert, args...).Scan(&site.ID); err != nil {
		return mapError(err)
	}
	site.CreatedAt, site.UpdatedAt = now, now
	return nil
}

func (s *Store) UpdateSite(ctx context.Context, id int64, site *core.Site) error {
	now := s.now().UTC()
	args := append(siteArgs(site), now.Format(timestampLayout), id)
	var created string
	err := s.db.QueryRowContext(ctx, siteUpdate, args...).Scan(&created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	if err != nil {
		return mapError(err)
	}
	site.ID = id
	site.CreatedAt, _ = time.Parse(timestampLayout, created)
	site.UpdatedAt = now
	return nil
}

func (s *Store) DeleteSite(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "sites", id)
}

func (s *Store) ListSites(ctx context.Context, f core.SiteFilter, opts core.ListOptions) ([]core.Site, int64, error) {
	where, args := sqlutil.SiteWhere(sqlutil.SQLite, f)
	order, err := sqlutil.OrderBy(core.SiteEntity, opts.Sort)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.count(ctx, "sites", where, args)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, siteSelect+where+order+sqlutil.Limit(opts), args...)
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
	where, args := sqlutil.SiteWhere(sqlutil.SQLite, f)
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
	deviceInsert = sqlutil.InsertSQL(sqlutil.SQLite, "devices", sqlutil.DeviceColumns)
	deviceUpdate = sqlutil.UpdateSQL(sqlutil.SQLite, "devices", sqlutil.DeviceColumns)
)

func deviceArgs(d *core.Device) []any {
	var date any
	if d.InstallationDate.Valid {
		date = core.FormatDate(d.InstallationDate)
	}
	return []any{
		d.NEName, d.SiteID, text(d.SerialNumber), text(d.OperatorID), text(d.IPAddress),
		text(d.MACAddress), text(d.ModelNumber), text(d.Vendor), text(d.DeviceType), text(d.EquipmentRole),
		text(d.Technology), text(d.Domain), text(d.SubDomain), string(d.Status), date,
		text(d.TechnicianName), text(d.TechnicianEmail),
	}
}

// text binds an optional value as NULL or a plain string.
func text(t pgtype.Text) any {
	if !t.Valid {
		return nil
	}
	return t.String
}

func scanDevice(row interface{ Scan(...any) error }) (*core.Device, error) {
	var (
		d                core.Device
		date             sql.NullString
		status           string
		created, updated string
	)
	err := row.Scan(&d.ID, &d.NEName, &d.SiteID, &d.SerialNumber, &d.OperatorID, &d.IPAddress,
		&d.MACAddress, &d.ModelNumber, &d.Vendor, &d.DeviceType, &d.EquipmentRole,
		&d.Technology, &d.Domain, &d.SubDomain, &status, &date,
		&d.TechnicianName, &d.TechnicianEmail, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.Status = core.Status(status)
	if date.Valid {
		d.InstallationDate = core.ToPgDate(date.String)
	}
	d.CreatedAt, _ = time.Parse(timestampLayout, created)
	d.UpdatedAt, _ = time.Parse(timestampLayout, updated)
	return &d, nil
}

func (s *Store) FindDeviceByKey(ctx context.Context, neName, siteID string) (*core.Device, error) {
	return scanDevice(s.db.QueryRowContext(ctx, deviceSelect+" WHERE ne_name = ?1 AND site_id = ?2", neName, siteID))
}

func (s *Store) GetDevice(ctx context.Context, id int64) (*core.Device, error) {
	return scanDevice(s.db.QueryRowContext(ctx, deviceSelect+" WHERE id = ?1", id))
}

func (s *Store) CreateDevice(ctx context.Context, d *core.Device) error {
	now := s.now().UTC()
	ts := now.Format(timestampLayout)
	args := append(deviceArgs(d), ts, ts)
	if err := s.db.QueryRowContext(ctx, deviceInsert, args...).Scan(&d.ID); err != nil {
		return mapError(err)
	}
	d.CreatedAt, d.UpdatedAt = now, now
	return nil
}

func (s *Store) UpdateDevice(ctx context.Context, id int64, d *core.Device) error {
	now := s.now().UTC()
	args := append(deviceArgs(d), now.Format(timestampLayout), id)
	var created string
	err := s.db.QueryRowContext(ctx, deviceUpdate, args...).Scan(&created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	if err != nil {
		return mapError(err)
	}
	d.ID = id
	d.CreatedAt, _ = time.Parse(timestampLayout, created)
	d.UpdatedAt = now
	return nil
}

func (s *Store) DeleteDevice(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "devices", id)
}

func (s *Store) DeleteDevicesBySite(ctx context.Context, siteID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM devices WHERE site_id = ?1", siteID)
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}

func (s *Store) ListDevices(ctx context.Context, f core.DeviceFilter, opts core.ListOptions) ([]core.Device, int64, error) {
	where, args := sqlutil.DeviceWhere(sqlutil.SQLite, f)
	order, err := sqlutil.OrderBy(core.DeviceEntity, opts.Sort)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.count(ctx, "devices", where, args)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, deviceSelect+where+order+sqlutil.Limit(opts), args...)
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
	where, args := sqlutil.DeviceWhere(sqlutil.SQLite, f)
	return s.count(ctx, "devices", where, args)
}

func (s *Store) CountDevicesBy(ctx context.Context, field string) (map[string]int64, error) {
	return s.countBy(ctx, core.DeviceEntity, "devices", field)
}

// ----------------------------------------------------------------------------
// Shared
// ----------------------------------------------------------------------------

func (s *Store) deleteByID(ctx context.Context, table string, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?1", id)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) count(ctx context.Context, table, where string, args []any) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func (s *Store) countBy(ctx context.Context, entity, table, field string) (map[string]int64, error) {
	col, err := sqlutil.GroupColumn(entity, field)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT COALESCE(NULLIF(%s, ''), ?1) AS grp, COUNT(*) FROM %s GROUP BY grp", col, table)
	rows, err := s.db.QueryContext(ctx, query, core.UnknownGroup)
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

// mapError turns SQLite constraint failures into *core.ConstraintViolation.
func mapError(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return &core.ConstraintViolation{Kind: core.ConstraintUnique, Constraint: uniqueConstraintName(se.Error()), Err: err}
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return &core.ConstraintViolation{Kind: core.ConstraintForeignKey, Constraint: "devices_site_id_fkey", Err: err}
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		return &core.ConstraintViolation{Kind: core.ConstraintCheck, Constraint: "check", Err: err}
	}
	// ON DELETE RESTRICT is enforced through an internal trigger and reports
	// SQLITE_CONSTRAINT_TRIGGER rather than the foreign key code.
	if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "FOREIGN KEY") {
		return &core.ConstraintViolation{Kind: core.ConstraintForeignKey, Constraint: "devices_site_id_fkey", Err: err}
	}
	return err
}

// uniqueConstraintName derives a Postgres-style name from SQLite's
// "UNIQUE constraint failed: devices.ne_name, devices.site_id".
func uniqueConstraintName(msg string) string {
	i := strings.LastIndex(msg, "failed: ")
	if i < 0 {
		return "unique"
	}
	cols, _, _ := strings.Cut(msg[i+len("failed: "):], " (")

	var table string
	parts := []string{}
	for _, qualified := range strings.Split(cols, ", ") {
		t, col, found := strings.Cut(strings.TrimSpace(qualified), ".")
		if !found {
			continue
		}
		table = t
		parts = append(parts, col)
	}
	if table == "" {
		return "unique"
	}
	return table + "_" + strings.Join(parts, "_") + "_key"
}
