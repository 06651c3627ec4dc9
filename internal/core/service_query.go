package core

import (
	"context"
	"fmt"
)

// UnknownGroup labels records with no value in a grouped count.
const UnknownGroup = "Unknown"

// exportBatchSize is the page size used when walking a whole table.
const exportBatchSize = 500

// GetSite returns a site by id.
func (s *Service) GetSite(ctx context.Context, id int64) (*Site, error) {
	return s.store.GetSite(ctx, id)
}

// GetDevice returns a device by id.
func (s *Service) GetDevice(ctx context.Context, id int64) (*Device, error) {
	return s.store.GetDevice(ctx, id)
}

// ListSites returns one page of sites matching f.
func (s *Service) ListSites(ctx context.Context, f SiteFilter, opts ListOptions) (*Page[Site], error) {
	opts, err := s.listOptions(SiteEntity, opts)
	if err != nil {
		return nil, err
	}
	items, total, err := s.store.ListSites(ctx, f, opts)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	return newPage(items, opts, total), nil
}

// ListDevices returns one page of devices matching f.
func (s *Service) ListDevices(ctx context.Context, f DeviceFilter, opts ListOptions) (*Page[Device], error) {
	opts, err := s.listOptions(DeviceEntity, opts)
	if err != nil {
		return nil, err
	}
	items, total, err := s.store.ListDevices(ctx, f, opts)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return newPage(items, opts, total), nil
}

// listOptions clamps paging and rejects sort fields the entity does not have.
func (s *Service) listOptions(entity string, opts ListOptions) (ListOptions, error) {
	def, err := s.Definition(entity)
	if err != nil {
		return opts, err
	}

	if opts.Page < 1 {
		opts.Page = 1
	}
	switch {
	case opts.PageSize <= 0:
		opts.PageSize = s.defaultPageSize
	case opts.PageSize > s.maxPageSize:
		opts.PageSize = s.maxPageSize
	}

	var errs ValidationErrors
	for _, sort := range opts.Sort {
		if _, ok := def.Spec(sort.Field); !ok {
			errs = append(errs, ValidationError{Field: "sort", Value: sort.Field, Message: "unknown sort field"})
		}
	}
	if len(errs) > 0 {
		return opts, errs
	}
	return opts, nil
}

func newPage[T any](items []T, opts ListOptions, total int64) *Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if opts.PageSize > 0 {
		pages = int((total + int64(opts.PageSize) - 1) / int64(opts.PageSize))
	}
	return &Page[T]{
		Items: items,
		Pagination: Pagination{
			Page:     opts.Page,
			PageSize: opts.PageSize,
			Total:    total,
			Pages:    pages,
		},
	}
}

// SiteStats aggregates all sites.
func (s *Service) SiteStats(ctx context.Context) (*SiteStats, error) {
	var (
		stats SiteStats
		err   error
	)
	if stats.Total, err = s.store.CountSites(ctx, SiteFilter{}); err != nil {
		return nil, fmt.Errorf("count sites: %w", err)
	}
	if stats.Active, err = s.store.CountSites(ctx, SiteFilter{Status: string(StatusActive)}); err != nil {
		return nil, fmt.Errorf("count active sites: %w", err)
	}
	if stats.Inactive, err = s.store.CountSites(ctx, SiteFilter{Status: string(StatusInactive)}); err != nil {
		return nil, fmt.Errorf("count inactive sites: %w", err)
	}
	if stats.ByRegion, err = s.store.CountSitesBy(ctx, "region5"); err != nil {
		return nil, fmt.Errorf("count sites by region: %w", err)
	}
	return &stats, nil
}

// DeviceStats aggregates all devices.
func (s *Service) DeviceStats(ctx context.Context) (*DeviceStats, error) {
	var (
		stats DeviceStats
		err   error
	)
	if stats.Total, err = s.store.CountDevices(ctx, DeviceFilter{}); err != nil {
		return nil, fmt.Errorf("count devices: %w", err)
	}
	if stats.Active, err = s.store.CountDevices(ctx, DeviceFilter{Status: string(StatusActive)}); err != nil {
		return nil, fmt.Errorf("count active devices: %w", err)
	}
	if stats.Inactive, err = s.store.CountDevices(ctx, DeviceFilter{Status: string(StatusInactive)}); err != nil {
		return nil, fmt.Errorf("count inactive devices: %w", err)
	}
	if stats.ByVendor, err = s.store.CountDevicesBy(ctx, "vendor"); err != nil {
		return nil, fmt.Errorf("count devices by vendor: %w", err)
	}
	if stats.ByTechnology, err = s.store.CountDevicesBy(ctx, "technology"); err != nil {
		return nil, fmt.Errorf("count devices by technology: %w", err)
	}
	return &stats, nil
}

// DashboardStats combines site and device stats.
func (s *Service) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	sites, err := s.SiteStats(ctx)
	if err != nil {
		return nil, err
	}
	devices, err := s.DeviceStats(ctx)
	if err != nil {
		return nil, err
	}
	return &DashboardStats{Sites: *sites, Devices: *devices}, nil
}

// eachSite calls fn for every site matching f, in id order.
func (s *Service) eachSite(ctx context.Context, f SiteFilter, fn func(*Site) error) error {
	opts := ListOptions{Page: 1, PageSize: exportBatchSize}
	for {
		items, total, err := s.store.ListSites(ctx, f, opts)
		if err != nil {
			return fmt.Errorf("list sites page %d: %w", opts.Page, err)
		}
		for i := range items {
			if err := fn(&items[i]); err != nil {
				return err
			}
		}
		if len(items) == 0 || int64(opts.Offset()+len(items)) >= total {
			return nil
		}
		opts.Page++
	}
}

// eachDevice calls fn for every device matching f, in id order.
func (s *Service) eachDevice(ctx context.Context, f DeviceFilter, fn func(*Device) error) error {
	opts := ListOptions{Page: 1, PageSize: exportBatchSize}
	for {
		items, total, err := s.store.ListDevices(ctx, f, opts)
		if err != nil {
			return fmt.Errorf("list devices page %d: %w", opts.Page, err)
		}
		for i := range items {
			if err := fn(&items[i]); err != nil {
				return err
			}
		}
		if len(items) == 0 || int64(opts.Offset()+len(items)) >= total {
			return nil
		}
		opts.Page++
	}
}
