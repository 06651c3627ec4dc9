package core_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/JonMunkholm/siteinventory/internal/core"
	"github.com/JonMunkholm/siteinventory/internal/store/memstore"
)

func importRows(t *rapid.T, rows []core.RawRow) *core.ImportSummary {
	svc := core.NewService(memstore.New(), core.WithClock(func() time.Time { return testNow }))
	summary, err := svc.ImportRows(context.Background(), core.SiteEntity, rows, core.ImportOptions{})
	if err != nil {
		t.Fatalf("ImportRows: %v", err)
	}
	return summary
}

func TestProperty_DistinctValidRowsAllSucceed(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 30).Draw(t, "n")

		rows := make([]core.RawRow, n)
		for i := range rows {
			fields := siteFields(fmt.Sprintf("S-%04d", i))
			fields["latitude"] = fmt.Sprint(rapid.Float64Range(-90, 90).Draw(t, "lat"))
			fields["longitude"] = fmt.Sprint(rapid.Float64Range(-180, 180).Draw(t, "lng"))
			rows[i] = core.RawRow{Row: i + 1, Fields: fields}
		}

		summary := importRows(t, rows)
		if summary.Succeeded != n || summary.Failed != 0 {
			t.Fatalf("succeeded=%d failed=%d, want %d/0: %v", summary.Succeeded, summary.Failed, n, summary.Errors)
		}
	})
}

func TestProperty_RepeatedKeyAcceptedOnce(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		siteID := rapid.StringMatching(`[A-Z]{3}-[0-9]{3}`).Draw(t, "siteId")
		copies := rapid.IntRange(2, 6).Draw(t, "copies")

		rows := make([]core.RawRow, copies)
		for i := range rows {
			rows[i] = core.RawRow{Row: i + 1, Fields: siteFields(siteID)}
		}

		summary := importRows(t, rows)
		if summary.Succeeded != 1 || summary.Failed != copies-1 {
			t.Fatalf("succeeded=%d failed=%d for %d copies", summary.Succeeded, summary.Failed, copies)
		}
		for _, e := range summary.Errors {
			if e.State != core.StateRejected {
				t.Fatalf("row %d state %s, want rejected", e.Row, e.State)
			}
		}
	})
}

func TestProperty_SummaryAccountsForEveryRow(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 25).Draw(t, "n")

		rows := make([]core.RawRow, n)
		for i := range rows {
			fields := siteFields(fmt.Sprintf("S-%d", rapid.IntRange(0, 5).Draw(t, "key")))
			if rapid.Bool().Draw(t, "badEmail") {
				fields["technicianEmail"] = "broken"
			}
			rows[i] = core.RawRow{Row: i + 1, Fields: fields}
		}

		summary := importRows(t, rows)
		if summary.Succeeded+summary.Failed+summary.Skipped != n || summary.TotalRows != n {
			t.Fatalf("succeeded=%d failed=%d total=%d, want sum %d", summary.Succeeded, summary.Failed, summary.TotalRows, n)
		}
		if len(summary.Errors) != summary.Failed {
			t.Fatalf("%d errors for %d failures", len(summary.Errors), summary.Failed)
		}
		for _, e := range summary.Errors {
			if !e.State.Terminal() {
				t.Fatalf("row %d ended in non-terminal state %s", e.Row, e.State)
			}
		}
	})
}

func TestProperty_CoordinatesOutOfRangeRejected(t *testing.T) {
	def, _ := core.Get(core.SiteEntity)
	validator := core.NewValidator(def, func() time.Time { return testNow })

	rapid.Check(t, func(t *rapid.T) {
		field := rapid.SampledFrom([]string{"latitude", "longitude"}).Draw(t, "field")
		limit := 90.0
		if field == "longitude" {
			limit = 180
		}
		excess := rapid.Float64Range(1e-6, 1e6).Draw(t, "excess")
		value := limit + excess
		if rapid.Bool().Draw(t, "negative") {
			value = -value
		}

		fields := siteFields("S1")
		fields[field] = fmt.Sprint(value)

		v := validator.Validate(core.Normalize(def, core.RawRow{Fields: fields}))
		if v.Valid() || v.Errors[0].Field != field {
			t.Fatalf("%s=%v accepted or misreported: %v", field, value, v.Errors)
		}
	})
}

func TestProperty_FutureDatesRejected(t *testing.T) {
	def, _ := core.Get(core.SiteEntity)
	validator := core.NewValidator(def, func() time.Time { return testNow })

	rapid.Check(t, func(t *rapid.T) {
		days := rapid.IntRange(-3650, 3650).Draw(t, "days")
		date := testNow.AddDate(0, 0, days).Format(core.DateLayout)

		fields := siteFields("S1")
		fields["installationDate"] = date

		v := validator.Validate(core.Normalize(def, core.RawRow{Fields: fields}))
		if days > 0 && v.Valid() {
			t.Fatalf("future date %s accepted", date)
		}
		if days <= 0 && !v.Valid() {
			t.Fatalf("past date %s rejected: %v", date, v.Errors)
		}
	})
}

func TestProperty_ExistingKeyAlwaysRejected(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		svc := core.NewService(memstore.New(), core.WithClock(func() time.Time { return testNow }))
		if _, err := svc.CreateSite(ctx, siteFields("RYD-001")); err != nil {
			t.Fatalf("CreateSite: %v", err)
		}

		// Same key, everything else varied.
		fields := siteFields("RYD-001")
		fields["city"] = rapid.StringMatching(`[A-Z][a-z]{2,10}`).Draw(t, "city")
		fields["latitude"] = fmt.Sprint(rapid.Float64Range(-90, 90).Draw(t, "lat"))
		fields["technicianName"] = rapid.StringMatching(`[A-Z][a-z]{1,8} [A-Z][a-z]{1,8}`).Draw(t, "tech")
		fields["status"] = rapid.SampledFrom([]string{"Active", "Inactive"}).Draw(t, "status")

		summary, err := svc.ImportRows(ctx, core.SiteEntity, []core.RawRow{{Row: 1, Fields: fields}}, core.ImportOptions{})
		if err != nil {
			t.Fatalf("ImportRows: %v", err)
		}
		if summary.Succeeded != 0 || len(summary.Errors) != 1 {
			t.Fatalf("succeeded=%d errors=%v, want one rejection", summary.Succeeded, summary.Errors)
		}
		if e := summary.Errors[0]; e.State != core.StateRejected || e.Existing["siteId"] != "RYD-001" {
			t.Fatalf("got state %s existing %v", e.State, e.Existing)
		}
	})
}
