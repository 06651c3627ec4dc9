// Package memstore is an in-memory core.Store. It enforces the same unique
// and foreign key constraints as the SQL schema and is used by tests and by
// the "memory" storage backend.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/siteinventory/internal/core"
)

// Constraint names mirror the SQL schema.
const (
	siteKeyConstraint   = "sites_site_id_key"
	legacyKeyConstraint = "sites_legacy_id_key"
	deviceKeyConstraint = "devices_ne_name_site_id_key"
	deviceFKConstraint  = "devices_site_id_fkey"
)

// Store holds sites and devices in maps keyed by id.
type Store struct {
	mu           sync.RWMutex
	sites        map[int64]core.Site
	devices      map[int64]core.Device
	nextSiteID   int64
	nextDeviceID int64
	now          func() time.Time
}

var _ core.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		sites:   make(map[int64]core.Site),
		devices: make(map[int64]core.Device),
		now:     time.Now,
	}
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

// ----------------------------------------------------------------------------
// Sites
// ----------------------------------------------------------------------------

func (s *Store) FindSiteByKey(ctx context.Context, siteID string) (*core.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, site := range s.sites {
		if site.SiteID == siteID {
			return &site, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) GetSite(ctx context.Context, id int64) (*core.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	site, ok := s.sites[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &site, nil
}

func (s *Store) CreateSite(ctx context.Context, site *core.Site) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSiteUnique(0, site); err != nil {
		return err
	}

	s.nextSiteID++
	now := s.now().UTC()
	site.ID = s.nextSiteID
	site.CreatedAt = now
	site.UpdatedAt = now
	s.sites[site.ID] = *site
	return nil
}

// UpdateSite replaces the site and carries a siteId rename to its devices.
func (s *Store) UpdateSite(ctx context.Context, id int64, site *core.Site) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.sites[id]
	if !ok {
		return core.ErrNotFound
	}
	if err := s.checkSiteUnique(id, site); err != nil {
		return err
	}

	site.ID = id
	site.CreatedAt = old.CreatedAt
	site.UpdatedAt = s.now().UTC()
	s.sites[id] = *site

	if old.SiteID != site.SiteID {
		for devID, d := range s.devices {
			if d.SiteID == old.SiteID {
				d.SiteID = site.SiteID
				s.devices[devID] = d
			}
		}
	}
	return nil
}

// DeleteSite refuses while devices reference the site.
func (s *Store) DeleteSite(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	site, ok := s.sites[id]
	if !ok {
		return core.ErrNotFound
	}
	for _, d := range s.devices {
		if d.SiteID == site.SiteID {
			return &core.ConstraintViolation{Kind: core.ConstraintForeignKey, Constraint: deviceFKConstraint}
		}
	}
	delete(s.sites, id)
	return nil
}

func (s *Store) ListSites(ctx context.Context, f core.SiteFilter, opts core.ListOptions) ([]core.Site, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def := mustDef(core.SiteEntity)
	matched := make([]core.Site, 0, len(s.sites))
	for _, site := range s.sites {
		if matchSite(def, &site, f) {
			matched = append(matched, site)
		}
	}
	if err := sortRecords(def, matched, opts.Sort, func(site *core.Site) int64 { return site.ID }); err != nil {
		return nil, 0, err
	}
	return paginate(matched, opts), int64(len(matched)), nil
}

func (s *Store) CountSites(ctx context.Context, f core.SiteFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def := mustDef(core.SiteEntity)
	var n int64
	for _, site := range s.sites {
		if matchSite(def, &site, f) {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountSitesBy(ctx context.Context, field string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def := mustDef(core.SiteEntity)
	if _, ok := def.Spec(field); !ok {
		return nil, fmt.Errorf("count sites by %q: unknown field", field)
	}
	counts := make(map[string]int64)
	for _, site := range s.sites {
		counts[groupKey(def.Fields(&site)[field])]++
	}
	return counts, nil
}

func (s *Store) checkSiteUnique(selfID int64, site *core.Site) error {
	for id, other := range s.sites {
		if id == selfID {
			continue
		}
		if other.SiteID == site.SiteID {
			return &core.ConstraintViolation{Kind: core.ConstraintUnique, Constraint: siteKeyConstraint}
		}
		if site.LegacyID.Valid && other.LegacyID.Valid && other.LegacyID.String == site.LegacyID.String {
			return &core.ConstraintViolation{Kind: core.ConstraintUnique, Constraint: legacyKeyConstraint}
		}
	}
	return nil
}

func (s *Store) siteExists(siteID string) bool {
	for _, site := range s.sites {
		if site.SiteID == siteID {
			return true
		}
	}
	return false
}

// ----------------------------------------------------------------------------
// Devices
// ----------------------------------------------------------------------------

func (s *Store) FindDeviceByKey(ctx context.Context, neName, siteID string) (*core.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.devices {
		if d.NEName == neName && d.SiteID == siteID {
			return &d, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) GetDevice(ctx context.Context, id int64) (*core.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &d, nil
}

func (s *Store) CreateDevice(ctx context.Context, d *core.Device) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkDevice(0, d); err != nil {
		return err
	}

	s.nextDeviceID++
	now := s.now().UTC()
	d.ID = s.nextDeviceID
	d.CreatedAt = now
	d.UpdatedAt = now
	s.devices[d.ID] = *d
	return nil
}

func (s *Store) UpdateDevice(ctx context.Context, id int64, d *core.Device) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.devices[id]
	if !ok {
		return core.ErrNotFound
	}
	if err := s.checkDevice(id, d); err != nil {
		return err
	}

	d.ID = id
	d.CreatedAt = old.CreatedAt
	d.UpdatedAt = s.now().UTC()
	s.devices[id] = *d
	return nil
}

func (s *Store) DeleteDevice(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.devices, id)
	return nil
}

func (s *Store) DeleteDevicesBySite(ctx context.Context, siteID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, d := range s.devices {
		if d.SiteID == siteID {
			delete(s.devices, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) ListDevices(ctx context.Context, f core.DeviceFilter, opts core.ListOptions) ([]core.Device, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def := mustDef(core.DeviceEntity)
	matched := make([]core.Device, 0, len(s.devices))
	for _, d := range s.devices {
		if matchDevice(def, &d, f) {
			matched = append(matched, d)
		}
	}
	if err := sortRecords(def, matched, opts.Sort, func(d *core.Device) int64 { return d.ID }); err != nil {
		return nil, 0, err
	}
	return paginate(matched, opts), int64(len(matched)), nil
}

func (s *Store) CountDevices(ctx context.Context, f core.DeviceFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def := mustDef(core.DeviceEntity)
	var n int64
	for _, d := range s.devices {
		if matchDevice(def, &d, f) {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountDevicesBy(ctx context.Context, field string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def := mustDef(core.DeviceEntity)
	if _, ok := def.Spec(field); !ok {
		return nil, fmt.Errorf("count devices by %q: unknown field", field)
	}
	counts := make(map[string]int64)
	for _, d := range s.devices {
		counts[groupKey(def.Fields(&d)[field])]++
	}
	return counts, nil
}

func (s *Store) checkDevice(selfID int64, d *core.Device) error {
	if !s.siteExists(d.SiteID) {
		return &core.ConstraintViolation{Kind: core.ConstraintForeignKey, Constraint: deviceFKConstraint}
	}
	for id, other := range s.devices {
		if id != selfID && other.NEName == d.NEName && other.SiteID == d.SiteID {
			return &core.ConstraintViolation{Kind: core.ConstraintUnique, Constraint: deviceKeyConstraint}
		}
	}
	return nil
}

// ----------------------------------------------------------------------------
// Filtering, sorting, paging
// ----------------------------------------------------------------------------

func mustDef(entity string) core.EntityDefinition {
	def, ok := core.Get(entity)
	if !ok {
		panic("memstore: entity not registered: " + entity)
	}
	return def
}

func matchSite(def core.EntityDefinition, site *core.Site, f core.SiteFilter) bool {
	fields := def.Fields(site)
	return matchSearch(fields, core.SiteSearchFields, f.Search) &&
		equalFold(fields["status"], f.Status) &&
		equalFold(fields["region5"], f.Region5) &&
		equalFold(fields["region13"], f.Region13) &&
		equalFold(fields["city"], f.City)
}

func matchDevice(def core.EntityDefinition, d *core.Device, f core.DeviceFilter) bool {
	fields := def.Fields(d)
	return matchSearch(fields, core.DeviceSearchFields, f.Search) &&
		(f.SiteID == "" || d.SiteID == f.SiteID) &&
		equalFold(fields["vendor"], f.Vendor) &&
		equalFold(fields["deviceType"], f.DeviceType) &&
		equalFold(fields["technology"], f.Technology) &&
		equalFold(fields["status"], f.Status)
}

// equalFold matches when the filter is empty or equal ignoring case.
func equalFold(value, filter string) bool {
	filter = strings.TrimSpace(filter)
	return filter == "" || strings.EqualFold(value, filter)
}

func matchSearch(fields map[string]string, searchable []string, query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	for _, name := range searchable {
		if strings.Contains(strings.ToLower(fields[name]), query) {
			return true
		}
	}
	return false
}

func groupKey(v string) string {
	if v == "" {
		return core.UnknownGroup
	}
	return v
}

// sortRecords orders records by the sort fields, then by id. Number fields
// compare numerically; everything else compares as case-insensitive text.
func sortRecords[T any](def core.EntityDefinition, records []T, sorts []core.SortSpec, id func(*T) int64) error {
	for _, sort := range sorts {
		if _, ok := def.Spec(sort.Field); !ok {
			return fmt.Errorf("unknown sort field %q", sort.Field)
		}
	}

	slices.SortStableFunc(records, func(a, b T) int {
		fa, fb := def.Fields(&a), def.Fields(&b)
		for _, sort := range sorts {
			spec, _ := def.Spec(sort.Field)
			c := compareField(spec, fa[sort.Field], fb[sort.Field])
			if sort.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return cmp.Compare(id(&a), id(&b))
	})
	return nil
}

func compareField(spec core.FieldSpec, a, b string) int {
	if spec.Type == core.FieldNumber {
		na, nb := core.ToPgFloat8(a), core.ToPgFloat8(b)
		return cmp.Compare(na.Float64, nb.Float64)
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func paginate[T any](records []T, opts core.ListOptions) []T {
	if opts.PageSize <= 0 {
		return records
	}
	start := opts.Offset()
	if start >= len(records) {
		return []T{}
	}
	end := min(start+opts.PageSize, len(records))
	return records[start:end]
}
