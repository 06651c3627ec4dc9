// Package seed holds a small demo inventory and loads it through the import
// pipeline.
package seed

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/siteinventory/internal/core"
)

//go:embed seed.yaml
var seedYAML []byte

// Data is the demo inventory keyed the way the import pipeline expects.
type Data struct {
	Sites   []map[string]string `yaml:"sites"`
	Devices []map[string]string `yaml:"devices"`
}

// Parse decodes the embedded seed data.
func Parse() (*Data, error) {
	var d Data
	if err := yaml.Unmarshal(seedYAML, &d); err != nil {
		return nil, fmt.Errorf("parse seed data: %w", err)
	}
	return &d, nil
}

// Rows converts records into RawRows numbered as if they came from a file
// with a header line.
func Rows(records []map[string]string) []core.RawRow {
	rows := make([]core.RawRow, len(records))
	for i, rec := range records {
		rows[i] = core.RawRow{Row: i + 1, Line: i + 2, Fields: rec}
	}
	return rows
}

// Load imports the seed sites, then the seed devices. Records that already
// exist are reported as duplicates in the summaries, so Load is safe to rerun.
func Load(ctx context.Context, svc *core.Service) ([]*core.ImportSummary, error) {
	d, err := Parse()
	if err != nil {
		return nil, err
	}

	batches := []struct {
		entity  string
		records []map[string]string
	}{
		{core.SiteEntity, d.Sites},
		{core.DeviceEntity, d.Devices},
	}

	summaries := make([]*core.ImportSummary, 0, len(batches))
	for _, b := range batches {
		summary, err := svc.ImportRows(ctx, b.entity, Rows(b.records), core.ImportOptions{FileName: "seed.yaml"})
		if err != nil {
			return summaries, fmt.Errorf("seed %s: %w", b.entity, err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
