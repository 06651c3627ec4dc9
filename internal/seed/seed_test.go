package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/siteinventory/internal/core"
	"github.com/JonMunkholm/siteinventory/internal/store/memstore"
)

func TestParse(t *testing.T) {
	d, err := Parse()
	require.NoError(t, err)

	assert.Len(t, d.Sites, 3)
	assert.Len(t, d.Devices, 4)
}

func TestRows(t *testing.T) {
	rows := Rows([]map[string]string{{"siteId": "A"}, {"siteId": "B"}})

	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[1].Row)
	assert.Equal(t, 3, rows[1].Line)
	assert.Equal(t, "B", rows[1].Fields["siteId"])
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	svc := core.NewService(memstore.New())

	summaries, err := Load(ctx, svc)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	for _, s := range summaries {
		assert.Zero(t, s.Failed, "%s errors: %+v", s.Entity, s.Errors)
	}
	assert.Equal(t, 3, summaries[0].Succeeded)
	assert.Equal(t, 4, summaries[1].Succeeded)

	page, err := svc.ListDevices(ctx, core.DeviceFilter{SiteID: "RYD-001"}, core.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Pagination.Total)

	again, err := Load(ctx, svc)
	require.NoError(t, err)
	assert.Zero(t, again[0].Succeeded)
	assert.Equal(t, 3, again[0].Failed)
}
