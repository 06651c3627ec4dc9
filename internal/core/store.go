package core

import "context"

// SiteStore persists sites. Find/Get/Update/Delete return ErrNotFound for a
// missing record; writes that break a schema constraint return
// *ConstraintViolation. Create and Update fill in ID and timestamps.
//
// List results follow opts.Sort (canonical field names) and then id.
// CountBy groups on a canonical field name; absent values count under
// UnknownGroup.
type SiteStore interface {
	FindSiteByKey(ctx context.Context, siteID string) (*Site, error)
	GetSite(ctx context.Context, id int64) (*Site, error)
	CreateSite(ctx context.Context, s *Site) error
	UpdateSite(ctx context.Context, id int64, s *Site) error
	DeleteSite(ctx context.Context, id int64) error
	ListSites(ctx context.Context, f SiteFilter, opts ListOptions) ([]Site, int64, error)
	CountSites(ctx context.Context, f SiteFilter) (int64, error)

	// CountSitesBy groups all sites by a canonical field name.
	CountSitesBy(ctx context.Context, field string) (map[string]int64, error)
}

// DeviceStore persists devices. Renaming a site carries its devices along;
// creating a device for an unknown site is a foreign key violation.
type DeviceStore interface {
	FindDeviceByKey(ctx context.Context, neName, siteID string) (*Device, error)
	GetDevice(ctx context.Context, id int64) (*Device, error)
	CreateDevice(ctx context.Context, d *Device) error
	UpdateDevice(ctx context.Context, id int64, d *Device) error
	DeleteDevice(ctx context.Context, id int64) error
	DeleteDevicesBySite(ctx context.Context, siteID string) (int64, error)
	ListDevices(ctx context.Context, f DeviceFilter, opts ListOptions) ([]Device, int64, error)
	CountDevices(ctx context.Context, f DeviceFilter) (int64, error)
	CountDevicesBy(ctx context.Context, field string) (map[string]int64, error)
}

// Store is the full persistence contract.
type Store interface {
	SiteStore
	DeviceStore
	Ping(ctx context.Context) error
	Close() error
}
