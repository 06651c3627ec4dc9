// Package admin provides destructive maintenance operations for the CLI.
package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/siteinventory/internal/core"
)

// ResetTimeout is the maximum duration for a full reset.
const ResetTimeout = 5 * time.Minute

// resetPageSize is how many records each delete pass fetches.
const resetPageSize = 200

// ResetResult counts what a reset removed.
type ResetResult struct {
	Devices int
	Sites   int
}

// Resetter empties the inventory through the service, so every delete goes
// through the same checks and logging as an API delete.
type Resetter struct {
	Service *core.Service
}

type resetFn func(ctx context.Context) (int, error)

// ResetAll deletes every device, then every site. Devices go first so no site
// delete needs to cascade.
func (r *Resetter) ResetAll(ctx context.Context) (ResetResult, error) {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	var res ResetResult
	counts, err := r.runResets(ctx, []resetFn{r.resetDevices, r.resetSites})
	if len(counts) > 0 {
		res.Devices = counts[0]
	}
	if len(counts) > 1 {
		res.Sites = counts[1]
	}
	return res, err
}

func (r *Resetter) runResets(ctx context.Context, resets []resetFn) ([]int, error) {
	counts := make([]int, 0, len(resets))
	for _, reset := range resets {
		n, err := reset(ctx)
		counts = append(counts, n)
		if err != nil {
			return counts, err
		}
	}
	return counts, nil
}

func (r *Resetter) resetDevices(ctx context.Context) (int, error) {
	deleted := 0
	for {
		page, err := r.Service.ListDevices(ctx, core.DeviceFilter{}, core.ListOptions{Page: 1, PageSize: resetPageSize})
		if err != nil {
			return deleted, fmt.Errorf("list devices: %w", err)
		}
		if len(page.Items) == 0 {
			return deleted, nil
		}
		for _, d := range page.Items {
			if err := r.Service.DeleteDevice(ctx, d.ID); err != nil {
				return deleted, fmt.Errorf("delete device %d: %w", d.ID, err)
			}
			deleted++
		}
	}
}

func (r *Resetter) resetSites(ctx context.Context) (int, error) {
	deleted := 0
	for {
		page, err := r.Service.ListSites(ctx, core.SiteFilter{}, core.ListOptions{Page: 1, PageSize: resetPageSize})
		if err != nil {
			return deleted, fmt.Errorf("list sites: %w", err)
		}
		if len(page.Items) == 0 {
			return deleted, nil
		}
		for _, s := range page.Items {
			if err := r.Service.DeleteSite(ctx, s.ID, false); err != nil {
				return deleted, fmt.Errorf("delete site %s: %w", s.SiteID, err)
			}
			deleted++
		}
	}
}
