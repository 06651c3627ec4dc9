package web

// handlers_common.go holds request parsing shared across handlers.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/siteinventory/internal/core"
)

// maxJSONBody caps create and update request bodies.
const maxJSONBody = 1 << 20

// readOnlyFields are accepted in request bodies (so a fetched record can be
// sent back as-is) but never applied.
var readOnlyFields = map[string]bool{"id": true, "createdAt": true, "updatedAt": true}

// badRequest marks field problems in the request itself (path, query or body
// syntax) as opposed to values the validator rejected.
type badRequest struct {
	errs core.ValidationErrors
}

func (e *badRequest) Error() string { return e.errs.Error() }
func (e *badRequest) Unwrap() error { return e.errs }

func newBadRequest(field, value, msg string) error {
	return &badRequest{errs: core.ValidationErrors{{Field: field, Value: value, Message: msg}}}
}

// parseIntParam parses a positive integer query parameter with a default.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseID reads the {id} path parameter.
func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, newBadRequest("id", raw, "must be a positive integer")
	}
	return id, nil
}

// parseBool reads a boolean form or query value; anything unparsable is false.
func parseBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.FormValue(name))
	return b
}

// parseSorts reads sort=field1,field2 with dir=asc,desc matched by position.
// A leading "-" on a field also selects descending order.
func parseSorts(r *http.Request) []core.SortSpec {
	sortStr := r.URL.Query().Get("sort")
	if sortStr == "" {
		return nil
	}
	dirs := strings.Split(r.URL.Query().Get("dir"), ",")

	var sorts []core.SortSpec
	for i, field := range strings.Split(sortStr, ",") {
		field = strings.TrimSpace(field)
		desc := false
		if strings.HasPrefix(field, "-") {
			field, desc = field[1:], true
		}
		if field == "" {
			continue
		}
		if i < len(dirs) && strings.EqualFold(strings.TrimSpace(dirs[i]), "desc") {
			desc = true
		}
		sorts = append(sorts, core.SortSpec{Field: field, Desc: desc})
	}
	return sorts
}

// parseListOptions reads page, pageSize, sort and dir. The service clamps
// the page size.
func parseListOptions(r *http.Request) core.ListOptions {
	return core.ListOptions{
		Page:     parseIntParam(r, "page", 1),
		PageSize: parseIntParam(r, "pageSize", 0),
		Sort:     parseSorts(r),
	}
}

// search accepts either search= or the short q=.
func search(r *http.Request) string {
	q := r.URL.Query()
	if s := q.Get("search"); s != "" {
		return s
	}
	return q.Get("q")
}

func parseSiteFilter(r *http.Request) core.SiteFilter {
	q := r.URL.Query()
	return core.SiteFilter{
		Search:   search(r),
		Status:   q.Get("status"),
		Region5:  q.Get("region5"),
		Region13: q.Get("region13"),
		City:     q.Get("city"),
	}
}

func parseDeviceFilter(r *http.Request) core.DeviceFilter {
	q := r.URL.Query()
	return core.DeviceFilter{
		Search:     search(r),
		SiteID:     q.Get("siteId"),
		Vendor:     q.Get("vendor"),
		DeviceType: q.Get("deviceType"),
		Technology: q.Get("technology"),
		Status:     q.Get("status"),
	}
}

// decodeFields reads a JSON object body into raw field values. Strings pass
// through, numbers keep their literal text, null becomes empty (clearing the
// field) and booleans become "true"/"false". Nested values are rejected.
func decodeFields(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, newBadRequest("", "", "request body is empty")
		}
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, err
		}
		return nil, newBadRequest("", "", fmt.Sprintf("invalid JSON: %v", err))
	}

	fields := make(map[string]string, len(raw))
	var errs core.ValidationErrors
	for k, v := range raw {
		if readOnlyFields[k] {
			continue
		}
		switch val := v.(type) {
		case nil:
			fields[k] = ""
		case string:
			fields[k] = val
		case json.Number:
			fields[k] = val.String()
		case bool:
			fields[k] = strconv.FormatBool(val)
		default:
			errs = append(errs, core.ValidationError{Field: k, Message: "must be a string, number or null"})
		}
	}
	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
		return nil, &badRequest{errs: errs}
	}
	return fields, nil
}
