package core

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Status is the lifecycle state shared by sites and devices.
type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

// Statuses lists the accepted status values in display order.
var Statuses = []Status{StatusActive, StatusInactive}

// ParseStatus matches s case-insensitively against the known statuses.
func ParseStatus(s string) (Status, bool) {
	s = strings.TrimSpace(s)
	for _, st := range Statuses {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

// Site is a physical installation identified by SiteID.
//
// Optional values use pgtype wrappers; Valid == false is the only absent
// representation. ID and the timestamps are owned by the store.
type Site struct {
	ID               int64       `json:"id"`
	SiteID           string      `json:"siteId"`
	LegacyID         pgtype.Text `json:"legacyId"`
	Region5          string      `json:"region5"`
	Region13         string      `json:"region13"`
	City             string      `json:"city"`
	District         string      `json:"district"`
	Latitude         float64     `json:"latitude"`
	Longitude        float64     `json:"longitude"`
	InstallationDate pgtype.Date `json:"installationDate"`
	Status           Status      `json:"status"`
	TechnicianName   string      `json:"technicianName"`
	TechnicianEmail  string      `json:"technicianEmail"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// Device is a piece of network equipment installed at a site. It is unique by
// (NEName, SiteID); SiteID references Site.SiteID.
type Device struct {
	ID               int64       `json:"id"`
	NEName           string      `json:"neName"`
	SiteID           string      `json:"siteId"`
	SerialNumber     pgtype.Text `json:"serialNumber"`
	OperatorID       pgtype.Text `json:"operatorId"`
	IPAddress        pgtype.Text `json:"ipAddress"`
	MACAddress       pgtype.Text `json:"macAddress"`
	ModelNumber      pgtype.Text `json:"modelNumber"`
	Vendor           pgtype.Text `json:"vendor"`
	DeviceType       pgtype.Text `json:"deviceType"`
	EquipmentRole    pgtype.Text `json:"equipmentRole"`
	Technology       pgtype.Text `json:"technology"`
	Domain           pgtype.Text `json:"domain"`
	SubDomain        pgtype.Text `json:"subDomain"`
	Status           Status      `json:"status"`
	InstallationDate pgtype.Date `json:"installationDate"`
	TechnicianName   pgtype.Text `json:"technicianName"`
	TechnicianEmail  pgtype.Text `json:"technicianEmail"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// Key is a record's unique business key: the entity's key field names with
// their values, in declaration order.
type Key struct {
	Fields []string
	Values []string
}

// NewKey pairs fields with values. Values are trimmed; comparison is exact.
func NewKey(fields []string, values ...string) Key {
	k := Key{Fields: fields, Values: make([]string, len(values))}
	for i, v := range values {
		k.Values[i] = strings.TrimSpace(v)
	}
	return k
}

// Value returns the value of the named key field.
func (k Key) Value(field string) string {
	for i, f := range k.Fields {
		if f == field && i < len(k.Values) {
			return k.Values[i]
		}
	}
	return ""
}

// Map returns the key as field -> value, for reporting to callers.
func (k Key) Map() map[string]string {
	m := make(map[string]string, len(k.Fields))
	for i, f := range k.Fields {
		if i < len(k.Values) {
			m[f] = k.Values[i]
		}
	}
	return m
}

func (k Key) String() string {
	parts := make([]string, 0, len(k.Fields))
	for i, f := range k.Fields {
		if i < len(k.Values) {
			parts = append(parts, f+"="+k.Values[i])
		}
	}
	return strings.Join(parts, ", ")
}

// fingerprint is the in-batch identity of a key.
func (k Key) fingerprint() string {
	return strings.Join(k.Values, "\x1f")
}

// IsZero reports whether the key has no values.
func (k Key) IsZero() bool {
	return len(k.Values) == 0
}

// FieldType is the coercion applied to a field during normalization.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldNumber
	FieldDate
)

// Format is a syntactic check applied to a present text value.
type Format int

const (
	FormatNone Format = iota
	FormatEmail
	FormatIP
	FormatMAC
)

// Range bounds a numeric field, inclusive at both ends.
type Range struct {
	Min, Max float64
}

// FieldSpec describes one canonical field of an entity.
type FieldSpec struct {
	Name       string              // Canonical name, e.g. "siteId"
	Aliases    []string            // Extra header names beyond case/separator variants
	DBColumn   string              // Column name used by SQL stores
	Type       FieldType           // Coercion applied by Normalize
	Required   bool                // Must be present after normalization
	Format     Format              // Syntactic check on text values
	Range      *Range              // Inclusive bounds for FieldNumber
	NotFuture  bool                // FieldDate must not be after today
	EnumValues []string            // Allowed values for FieldEnum
	Default    string              // Used when the value is absent
	Normalizer func(string) string // Optional canonicalization of text values
}

// EntityInfo identifies an entity type.
type EntityInfo struct {
	Key       string   // Registry key and URL segment: "sites"
	Label     string   // Display name: "Sites"
	UniqueKey []string // Canonical field names forming the unique key
}

// Existing is a stored record found while resolving a key.
type Existing struct {
	ID  int64
	Key Key
}

// EntityDefinition contains everything the pipeline needs for one entity.
type EntityDefinition struct {
	Info       EntityInfo
	FieldSpecs []FieldSpec

	// Build converts a valid row into a record (*Site or *Device).
	Build func(row NormalizedRow) any

	// KeyOf extracts the unique key from a record built by Build.
	KeyOf func(record any) Key

	// Find looks a key up in the store, returning ErrNotFound when absent.
	Find func(ctx context.Context, s Store, k Key) (Existing, error)

	// Create persists a record built by Build.
	Create func(ctx context.Context, s Store, record any) error

	// Fields renders a record as canonical field name -> text, for export
	// and for merging update patches.
	Fields func(record any) map[string]string

	// Example is a sample data row for the import template, one value per
	// FieldSpec.
	Example []string

	lookup map[string]int
}

// Columns returns the canonical field names in declaration order.
func (d EntityDefinition) Columns() []string {
	cols := make([]string, len(d.FieldSpecs))
	for i, spec := range d.FieldSpecs {
		cols[i] = spec.Name
	}
	return cols
}

// Spec returns the field spec for a canonical name.
func (d EntityDefinition) Spec(name string) (FieldSpec, bool) {
	for _, spec := range d.FieldSpecs {
		if spec.Name == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

// DBColumn returns the SQL column for a canonical field name.
func (d EntityDefinition) DBColumn(name string) (string, bool) {
	spec, ok := d.Spec(name)
	if !ok {
		return "", false
	}
	if spec.DBColumn != "" {
		return spec.DBColumn, true
	}
	return toDBColumnName(spec.Name), true
}

// SortSpec orders list results by a canonical field name.
type SortSpec struct {
	Field string
	Desc  bool
}

// ListOptions holds pagination and ordering for list queries.
type ListOptions struct {
	Page     int
	PageSize int
	Sort     []SortSpec
}

// Offset returns the row offset for the (1-based) page.
func (o ListOptions) Offset() int {
	if o.Page <= 1 {
		return 0
	}
	return (o.Page - 1) * o.PageSize
}

// Pagination describes one page of a list result.
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
	Pages    int   `json:"pages"`
}

// Page is one page of records.
type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// Fields matched by the free-text Search of each filter.
var (
	SiteSearchFields   = []string{"siteId", "legacyId", "city", "district", "technicianName"}
	DeviceSearchFields = []string{"neName", "siteId", "serialNumber", "modelNumber", "vendor"}
)

// SiteFilter narrows site lists. Empty fields are ignored. Search is a
// case-insensitive substring match over SiteSearchFields; the other fields
// are case-insensitive equality.
type SiteFilter struct {
	Search   string
	Status   string
	Region5  string
	Region13 string
	City     string
}

// DeviceFilter narrows device lists like SiteFilter does. SiteID matches
// exactly.
type DeviceFilter struct {
	Search     string
	SiteID     string
	Vendor     string
	DeviceType string
	Technology string
	Status     string
}

// SiteStats aggregates sites for the dashboard.
type SiteStats struct {
	Total    int64            `json:"total"`
	Active   int64            `json:"active"`
	Inactive int64            `json:"inactive"`
	ByRegion map[string]int64 `json:"byRegion"`
}

// DeviceStats aggregates devices for the dashboard.
type DeviceStats struct {
	Total        int64            `json:"total"`
	Active       int64            `json:"active"`
	Inactive     int64            `json:"inactive"`
	ByVendor     map[string]int64 `json:"byVendor"`
	ByTechnology map[string]int64 `json:"byTechnology"`
}

// DashboardStats combines site and device stats.
type DashboardStats struct {
	Sites   SiteStats   `json:"sites"`
	Devices DeviceStats `json:"devices"`
}
