package sqlutil

import (
	"fmt"
	"strings"
)

// Writable columns in the order the stores bind them. id and the timestamps
// are managed separately.
var (
	SiteColumns = []string{
		"site_id", "legacy_id", "region5", "region13", "city", "district",
		"latitude", "longitude", "installation_date", "status",
		"technician_name", "technician_email",
	}
	DeviceColumns = []string{
		"ne_name", "site_id", "serial_number", "operator_id", "ip_address",
		"mac_address", "model_number", "vendor", "device_type", "equipment_role",
		"technology", "domain", "sub_domain", "status", "installation_date",
		"technician_name", "technician_email",
	}
)

// Placeholders returns n comma-separated placeholders starting at start.
func Placeholders(d Dialect, start, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = d.Placeholder(start + i)
	}
	return strings.Join(ph, ", ")
}

// Assignments returns "col1 = $start, col2 = $start+1, ...".
func Assignments(d Dialect, start int, cols []string) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = fmt.Sprintf("%s = %s", col, d.Placeholder(start+i))
	}
	return strings.Join(parts, ", ")
}

// InsertSQL builds an INSERT of cols plus created_at/updated_at, returning id.
// The two timestamp placeholders follow the column placeholders.
func InsertSQL(d Dialect, table string, cols []string) string {
	all := append(append([]string{}, cols...), "created_at", "updated_at")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		table, strings.Join(all, ", "), Placeholders(d, 1, len(all)))
}

// UpdateSQL builds an UPDATE of cols plus updated_at for one id. The id is
// the last placeholder.
func UpdateSQL(d Dialect, table string, cols []string) string {
	all := append(append([]string{}, cols...), "updated_at")
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = %s RETURNING created_at",
		table, Assignments(d, 1, all), d.Placeholder(len(all)+1))
}

// SelectColumns lists id, cols and the timestamps for a SELECT.
func SelectColumns(cols []string) string {
	return "id, " + strings.Join(cols, ", ") + ", created_at, updated_at"
}
