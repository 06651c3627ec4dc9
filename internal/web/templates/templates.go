// Package templates renders the server-side HTML: the dashboard page and the
// fragments swapped in by HTMX after an import or a failed request.
package templates

import (
	"context"
	"io"
	"sort"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/siteinventory/internal/core"
)

// htmxSrc is loaded by the layout; the CSP in the web package allows it.
const htmxSrc = "https://unpkg.com/htmx.org@1.9.12"

// html accumulates writes and keeps the first error.
type html struct {
	w   io.Writer
	err error
}

func (h *html) raw(parts ...string) {
	for _, p := range parts {
		if h.err != nil {
			return
		}
		_, h.err = io.WriteString(h.w, p)
	}
}

func (h *html) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *html) render(ctx context.Context, c templ.Component) {
	if h.err == nil {
		h.err = c.Render(ctx, h.w)
	}
}

// Layout wraps body in the page shell.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`,
			`<meta name="viewport" content="width=device-width, initial-scale=1">`,
			`<title>`)
		h.text(title)
		h.raw(`</title><script src="`, htmxSrc, `"></script></head><body><main class="container">`)
		h.render(ctx, body)
		h.raw(`</main></body></html>`)
		return h.err
	})
}

// DashboardData feeds the dashboard page.
type DashboardData struct {
	Stats    core.DashboardStats
	Entities []core.EntityInfo
}

// Dashboard is the landing page: totals, breakdowns and one import form per
// entity.
func Dashboard(data DashboardData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<h1>Site Inventory</h1><section class="stats">`)
		statCard(h, "Sites", data.Stats.Sites.Total, data.Stats.Sites.Active, data.Stats.Sites.Inactive)
		statCard(h, "Devices", data.Stats.Devices.Total, data.Stats.Devices.Active, data.Stats.Devices.Inactive)
		h.raw(`</section><section class="breakdowns">`)
		breakdown(h, "Sites by region", data.Stats.Sites.ByRegion)
		breakdown(h, "Devices by vendor", data.Stats.Devices.ByVendor)
		breakdown(h, "Devices by technology", data.Stats.Devices.ByTechnology)
		h.raw(`</section>`)

		for _, e := range data.Entities {
			h.raw(`<section class="import"><h2>Import `)
			h.text(e.Label)
			h.raw(`</h2><form hx-post="/api/import/`, templ.EscapeString(e.Key),
				`" hx-encoding="multipart/form-data" hx-target="#result-`, templ.EscapeString(e.Key), `">`,
				`<input type="file" name="file" accept=".csv,.xlsx" required>`,
				`<label><input type="checkbox" name="dryRun" value="true"> Dry run</label>`,
				`<button type="submit">Upload</button> `,
				`<a href="/api/template/`, templ.EscapeString(e.Key), `">Template</a> `,
				`<a href="/api/export/`, templ.EscapeString(e.Key), `?format=csv">Export CSV</a> `,
				`<a href="/api/export/`, templ.EscapeString(e.Key), `?format=xlsx">Export XLSX</a>`,
				`</form><div id="result-`, templ.EscapeString(e.Key), `"></div></section>`)
		}
		return h.err
	})
	return Layout("Site Inventory", body)
}

func statCard(h *html, label string, total, active, inactive int64) {
	h.raw(`<article class="stat"><h2>`)
	h.text(label)
	h.raw(`</h2><p class="total">`, strconv.FormatInt(total, 10), `</p>`,
		`<p>`, strconv.FormatInt(active, 10), ` active, `, strconv.FormatInt(inactive, 10), ` inactive</p></article>`)
}

func breakdown(h *html, title string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h.raw(`<table><caption>`)
	h.text(title)
	h.raw(`</caption><tbody>`)
	for _, k := range keys {
		h.raw(`<tr><td>`)
		h.text(k)
		h.raw(`</td><td>`, strconv.FormatInt(counts[k], 10), `</td></tr>`)
	}
	h.raw(`</tbody></table>`)
}

// ImportSummary is the fragment returned to an HTMX import form.
func ImportSummary(s *core.ImportSummary) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		class := "alert-success"
		if s.Failed > 0 || s.Interrupted {
			class = "alert-warning"
		}
		h.raw(`<div class="import-summary `, class, `" data-import-id="`, templ.EscapeString(s.ImportID), `">`)
		if s.DryRun {
			h.raw(`<p><strong>Dry run:</strong> nothing was saved.</p>`)
		}
		h.raw(`<p>`, strconv.Itoa(s.Succeeded), ` of `, strconv.Itoa(s.TotalRows), ` rows imported, `,
			strconv.Itoa(s.Failed), ` failed.</p>`)
		if s.Interrupted {
			h.raw(`<p>The import was interrupted; `, strconv.Itoa(s.Skipped), ` remaining rows were not processed.</p>`)
		}
		if len(s.Errors) > 0 {
			h.raw(`<table class="row-errors"><thead><tr><th>Row</th><th>Line</th><th>Code</th><th>Reason</th></tr></thead><tbody>`)
			for _, e := range s.Errors {
				h.raw(`<tr><td>`, strconv.Itoa(e.Row), `</td><td>`, strconv.Itoa(e.Line), `</td><td>`)
				h.text(e.Code)
				h.raw(`</td><td>`)
				h.text(e.Reason)
				h.raw(`</td></tr>`)
			}
			h.raw(`</tbody></table>`)
		}
		h.raw(`</div>`)
		return h.err
	})
}

// ErrorAlert is the fragment returned to HTMX requests that failed.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<div class="alert alert-error" role="alert"><strong>`)
		h.text(message)
		h.raw(`</strong>`)
		if action != "" {
			h.raw(`<p>`)
			h.text(action)
			h.raw(`</p>`)
		}
		if code != "" {
			h.raw(`<small>`)
			h.text(code)
			h.raw(`</small>`)
		}
		h.raw(`</div>`)
		return h.err
	})
}
