// Package storetest is a contract suite every core.Store implementation runs
// from its own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/siteinventory/internal/core"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) core.Store

// Run executes the contract against stores made by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s core.Store)
	}{
		{"SiteCRUD", testSiteCRUD},
		{"SiteUniqueKey", testSiteUniqueKey},
		{"LegacyIDUniqueWhenPresent", testLegacyIDUnique},
		{"DeviceForeignKey", testDeviceForeignKey},
		{"DeviceCompositeKey", testDeviceCompositeKey},
		{"SiteRenameCascades", testSiteRenameCascades},
		{"DeleteSiteWithDevicesRestricted", testDeleteRestricted},
		{"DeleteDevicesBySite", testDeleteDevicesBySite},
		{"ListFilterSortPage", testListFilterSortPage},
		{"DeviceFilters", testDeviceFilters},
		{"CountBy", testCountBy},
		{"NotFound", testNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

// Site returns a valid site with the given siteId.
func Site(siteID string) *core.Site {
	return &core.Site{
		SiteID:           siteID,
		Region5:          "Central",
		Region13:         "Riyadh",
		City:             "Riyadh",
		District:         "Olaya",
		Latitude:         24.7136,
		Longitude:        46.6753,
		InstallationDate: core.ToPgDate("2024-01-15"),
		Status:           core.StatusActive,
		TechnicianName:   "John Doe",
		TechnicianEmail:  "john@example.com",
	}
}

// Device returns a valid device at siteID.
func Device(neName, siteID string) *core.Device {
	return &core.Device{
		NEName:     neName,
		SiteID:     siteID,
		Vendor:     core.ToPgText("Huawei"),
		Technology: core.ToPgText("5G"),
		IPAddress:  core.ToPgText("10.0.0.1"),
		Status:     core.StatusActive,
	}
}

func testSiteCRUD(t *testing.T, s core.Store) {
	ctx := context.Background()

	site := Site("RYD-001")
	site.LegacyID = core.ToPgText("L-1")
	require.NoError(t, s.CreateSite(ctx, site))
	assert.NotZero(t, site.ID)
	assert.False(t, site.CreatedAt.IsZero())

	got, err := s.GetSite(ctx, site.ID)
	require.NoError(t, err)
	assert.Equal(t, "RYD-001", got.SiteID)
	assert.Equal(t, "L-1", got.LegacyID.String)
	assert.Equal(t, "2024-01-15", core.FormatDate(got.InstallationDate))
	assert.InDelta(t, 24.7136, got.Latitude, 1e-9)
	assert.Equal(t, core.StatusActive, got.Status)

	byKey, err := s.FindSiteByKey(ctx, "RYD-001")
	require.NoError(t, err)
	assert.Equal(t, site.ID, byKey.ID)

	got.City = "Diriyah"
	got.LegacyID = core.ToPgText("")
	require.NoError(t, s.UpdateSite(ctx, site.ID, got))

	updated, err := s.GetSite(ctx, site.ID)
	require.NoError(t, err)
	assert.Equal(t, "Diriyah", updated.City)
	assert.False(t, updated.LegacyID.Valid, "cleared optional value must read back absent")
	assert.WithinDuration(t, site.CreatedAt, updated.CreatedAt, time.Second)

	require.NoError(t, s.DeleteSite(ctx, site.ID))
	_, err = s.GetSite(ctx, site.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func testSiteUniqueKey(t *testing.T, s core.Store) {
	ctx := context.Background()

	require.NoError(t, s.CreateSite(ctx, Site("RYD-001")))
	err := s.CreateSite(ctx, Site("RYD-001"))
	assert.True(t, core.IsConstraint(err, core.ConstraintUnique), "got %v", err)

	other := Site("RYD-002")
	require.NoError(t, s.CreateSite(ctx, other))
	other.SiteID = "RYD-001"
	err = s.UpdateSite(ctx, other.ID, other)
	assert.True(t, core.IsConstraint(err, core.ConstraintUnique), "got %v", err)
}

func testLegacyIDUnique(t *testing.T, s core.Store) {
	ctx := context.Background()

	// Absent legacy ids never collide.
	require.NoError(t, s.CreateSite(ctx, Site("A")))
	require.NoError(t, s.CreateSite(ctx, Site("B")))

	c := Site("C")
	c.LegacyID = core.ToPgText("OLD-1")
	require.NoError(t, s.CreateSite(ctx, c))

	d := Site("D")
	d.LegacyID = core.ToPgText("OLD-1")
	err := s.CreateSite(ctx, d)
	assert.True(t, core.IsConstraint(err, core.ConstraintUnique), "got %v", err)
}

func testDeviceForeignKey(t *testing.T, s core.Store) {
	ctx := context.Background()

	err := s.CreateDevice(ctx, Device("NE-1", "MISSING"))
	assert.True(t, core.IsConstraint(err, core.ConstraintForeignKey), "got %v", err)
}

func testDeviceCompositeKey(t *testing.T, s core.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateSite(ctx, Site("S1")))
	require.NoError(t, s.CreateSite(ctx, Site("S2")))

	require.NoError(t, s.CreateDevice(ctx, Device("NE-1", "S1")))
	// Same name at another site is a different device.
	require.NoError(t, s.CreateDevice(ctx, Device("NE-1", "S2")))

	err := s.CreateDevice(ctx, Device("NE-1", "S1"))
	assert.True(t, core.IsConstraint(err, core.ConstraintUnique), "got %v", err)

	d, err := s.FindDeviceByKey(ctx, "NE-1", "S2")
	require.NoError(t, err)
	assert.Equal(t, "S2", d.SiteID)
	assert.Equal(t, "Huawei", d.Vendor.String)
	assert.False(t, d.SerialNumber.Valid)
	assert.False(t, d.InstallationDate.Valid)
}

func testSiteRenameCascades(t *testing.T, s core.Store) {
	ctx := context.Background()
	site := Site("OLD")
	require.NoError(t, s.CreateSite(ctx, site))
	dev := Device("NE-1", "OLD")
	require.NoError(t, s.CreateDevice(ctx, dev))

	site.SiteID = "NEW"
	require.NoError(t, s.UpdateSite(ctx, site.ID, site))

	got, err := s.GetDevice(ctx, dev.ID)
	require.NoError(t, err)
	assert.Equal(t, "NEW", got.SiteID)
}

func testDeleteRestricted(t *testing.T, s core.Store) {
	ctx := context.Background()
	site := Site("S1")
	require.NoError(t, s.CreateSite(ctx, site))
	require.NoError(t, s.CreateDevice(ctx, Device("NE-1", "S1")))

	err := s.DeleteSite(ctx, site.ID)
	assert.True(t, core.IsConstraint(err, core.ConstraintForeignKey), "got %v", err)

	_, err = s.GetSite(ctx, site.ID)
	assert.NoError(t, err, "site must survive a restricted delete")
}

func testDeleteDevicesBySite(t *testing.T, s core.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateSite(ctx, Site("S1")))
	require.NoError(t, s.CreateSite(ctx, Site("S2")))
	require.NoError(t, s.CreateDevice(ctx, Device("A", "S1")))
	require.NoError(t, s.CreateDevice(ctx, Device("B", "S1")))
	require.NoError(t, s.CreateDevice(ctx, Device("C", "S2")))

	n, err := s.DeleteDevicesBySite(ctx, "S1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	left, err := s.CountDevices(ctx, core.DeviceFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, left)
}

func testListFilterSortPage(t *testing.T, s core.Store) {
	ctx := context.Background()

	cities := []string{"Riyadh", "Jeddah", "Dammam", "Riyadh", "Mecca"}
	for i, city := range cities {
		site := Site(string(rune('A' + i)))
		site.City = city
		site.Latitude = float64(10 + i)
		if i%2 == 1 {
			site.Status = core.StatusInactive
		}
		require.NoError(t, s.CreateSite(ctx, site))
	}

	items, total, err := s.ListSites(ctx, core.SiteFilter{City: "riyadh"}, core.ListOptions{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, items, 2)

	items, total, err = s.ListSites(ctx, core.SiteFilter{Search: "JED"}, core.ListOptions{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Jeddah", items[0].City)

	n, err := s.CountSites(ctx, core.SiteFilter{Status: "Inactive"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	items, total, err = s.ListSites(ctx, core.SiteFilter{},
		core.ListOptions{Page: 2, PageSize: 2, Sort: []core.SortSpec{{Field: "latitude", Desc: true}}})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, items, 2)
	assert.Equal(t, "C", items[0].SiteID)
	assert.Equal(t, "B", items[1].SiteID)

	items, _, err = s.ListSites(ctx, core.SiteFilter{}, core.ListOptions{Page: 4, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func testDeviceFilters(t *testing.T, s core.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateSite(ctx, Site("S1")))
	require.NoError(t, s.CreateSite(ctx, Site("S10")))

	a := Device("core-router", "S1")
	b := Device("edge-switch", "S10")
	b.Vendor = core.ToPgText("Nokia")
	require.NoError(t, s.CreateDevice(ctx, a))
	require.NoError(t, s.CreateDevice(ctx, b))

	n, err := s.CountDevices(ctx, core.DeviceFilter{SiteID: "S1"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "siteId filter must be exact")

	n, err = s.CountDevices(ctx, core.DeviceFilter{Vendor: "nokia"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	items, _, err := s.ListDevices(ctx, core.DeviceFilter{Search: "ROUTER"}, core.ListOptions{Page: 1, PageSize: 5})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "core-router", items[0].NEName)
}

func testCountBy(t *testing.T, s core.Store) {
	ctx := context.Background()
	north := Site("N1")
	north.Region5 = "North"
	require.NoError(t, s.CreateSite(ctx, north))
	require.NoError(t, s.CreateSite(ctx, Site("C1")))
	require.NoError(t, s.CreateSite(ctx, Site("C2")))

	byRegion, err := s.CountSitesBy(ctx, "region5")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"North": 1, "Central": 2}, byRegion)

	plain := Device("X", "C1")
	plain.Technology = core.ToPgText("")
	require.NoError(t, s.CreateDevice(ctx, plain))
	require.NoError(t, s.CreateDevice(ctx, Device("Y", "C1")))

	byTech, err := s.CountDevicesBy(ctx, "technology")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"5G": 1, core.UnknownGroup: 1}, byTech)

	_, err = s.CountDevicesBy(ctx, "nope")
	assert.Error(t, err)
}

func testNotFound(t *testing.T, s core.Store) {
	ctx := context.Background()

	_, err := s.GetSite(ctx, 999)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.FindSiteByKey(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.FindDeviceByKey(ctx, "nope", "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.ErrorIs(t, s.DeleteSite(ctx, 999), core.ErrNotFound)
	assert.ErrorIs(t, s.DeleteDevice(ctx, 999), core.ErrNotFound)
	assert.ErrorIs(t, s.UpdateDevice(ctx, 999, Device("a", "b")), core.ErrNotFound)
	assert.ErrorIs(t, s.UpdateSite(ctx, 999, Site("x")), core.ErrNotFound)
}
