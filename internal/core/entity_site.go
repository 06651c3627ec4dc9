package core

import (
	"context"
)

// SiteEntity is the registry key for sites.
const SiteEntity = "sites"

func normalizeStatus(s string) string {
	if st, ok := ParseStatus(s); ok {
		return string(st)
	}
	return s
}

var siteFieldSpecs = []FieldSpec{
	{Name: "siteId", Type: FieldText, Required: true},
	{Name: "legacyId", Type: FieldText, Aliases: []string{"legacySiteId"}},
	{Name: "region5", Type: FieldText, Required: true, Aliases: []string{"region"},
		Normalizer: vocabularyTerm(func(v *Vocabulary) []string { return v.Regions5 })},
	{Name: "region13", Type: FieldText, Required: true, Aliases: []string{"adminRegion"},
		Normalizer: vocabularyTerm(func(v *Vocabulary) []string { return v.Regions13 })},
	{Name: "city", Type: FieldText, Required: true},
	{Name: "district", Type: FieldText, Required: true},
	{Name: "latitude", Type: FieldNumber, Required: true, Range: &Range{Min: -90, Max: 90}, Aliases: []string{"lat"}},
	{Name: "longitude", Type: FieldNumber, Required: true, Range: &Range{Min: -180, Max: 180}, Aliases: []string{"lng", "lon", "long"}},
	{Name: "installationDate", Type: FieldDate, Required: true, NotFuture: true, Aliases: []string{"installDate"}},
	{Name: "status", Type: FieldEnum, EnumValues: []string{string(StatusActive), string(StatusInactive)},
		Default: string(StatusActive), Normalizer: normalizeStatus},
	{Name: "technicianName", Type: FieldText, Required: true, Aliases: []string{"technician"}},
	{Name: "technicianEmail", Type: FieldText, Required: true, Format: FormatEmail, Aliases: []string{"email"}},
}

func init() {
	Register(EntityDefinition{
		Info: EntityInfo{
			Key:       SiteEntity,
			Label:     "Sites",
			UniqueKey: []string{"siteId"},
		},
		FieldSpecs: siteFieldSpecs,
		Build:      func(row NormalizedRow) any { return siteFromRow(row) },
		KeyOf:      func(record any) Key { return siteKey(record.(*Site).SiteID) },
		Find: func(ctx context.Context, s Store, k Key) (Existing, error) {
			site, err := s.FindSiteByKey(ctx, k.Value("siteId"))
			if err != nil {
				return Existing{}, err
			}
			return Existing{ID: site.ID, Key: siteKey(site.SiteID)}, nil
		},
		Create: func(ctx context.Context, s Store, record any) error {
			return s.CreateSite(ctx, record.(*Site))
		},
		Fields: func(record any) map[string]string { return siteFields(record.(*Site)) },
		Example: []string{"EXAMPLE001", "", "Central", "Riyadh", "Riyadh", "Downtown",
			"24.7136", "46.6753", "2024-01-15", "Active", "John Doe", "john@example.com"},
	})
}

func siteKey(siteID string) Key {
	return NewKey([]string{"siteId"}, siteID)
}

// siteFromRow builds a Site from a valid row.
func siteFromRow(row NormalizedRow) *Site {
	return &Site{
		SiteID:           row.String("siteId"),
		LegacyID:         row.Text("legacyId"),
		Region5:          row.String("region5"),
		Region13:         row.String("region13"),
		City:             row.String("city"),
		District:         row.String("district"),
		Latitude:         row.Number("latitude").Float64,
		Longitude:        row.Number("longitude").Float64,
		InstallationDate: row.Date("installationDate"),
		Status:           Status(row.String("status")),
		TechnicianName:   row.String("technicianName"),
		TechnicianEmail:  row.String("technicianEmail"),
	}
}

// siteFields renders a site using canonical names; absent values are "".
func siteFields(s *Site) map[string]string {
	return map[string]string{
		"siteId":           s.SiteID,
		"legacyId":         TextValue(s.LegacyID),
		"region5":          s.Region5,
		"region13":         s.Region13,
		"city":             s.City,
		"district":         s.District,
		"latitude":         FormatFloat(s.Latitude),
		"longitude":        FormatFloat(s.Longitude),
		"installationDate": FormatDate(s.InstallationDate),
		"status":           string(s.Status),
		"technicianName":   s.TechnicianName,
		"technicianEmail":  s.TechnicianEmail,
	}
}
