package core

import (
	"context"
	"net"
	"net/netip"
)

// DeviceEntity is the registry key for devices.
const DeviceEntity = "devices"

func normalizeIP(s string) string {
	if addr, err := netip.ParseAddr(s); err == nil {
		return addr.String()
	}
	return s
}

func normalizeMAC(s string) string {
	if hw, err := net.ParseMAC(s); err == nil {
		return hw.String()
	}
	return s
}

var deviceFieldSpecs = []FieldSpec{
	{Name: "neName", Type: FieldText, Required: true, Aliases: []string{"networkElementName", "ne"}},
	{Name: "siteId", Type: FieldText, Required: true},
	{Name: "serialNumber", Type: FieldText, Aliases: []string{"serial", "serialNo"}},
	{Name: "operatorId", Type: FieldText},
	{Name: "ipAddress", Type: FieldText, Format: FormatIP, Aliases: []string{"neIpAddress", "ip"}, Normalizer: normalizeIP},
	{Name: "macAddress", Type: FieldText, Format: FormatMAC, Aliases: []string{"neMacAddress", "mac"}, Normalizer: normalizeMAC},
	{Name: "modelNumber", Type: FieldText, Aliases: []string{"model"}},
	{Name: "vendor", Type: FieldText,
		Normalizer: vocabularyTerm(func(v *Vocabulary) []string { return v.Vendors })},
	{Name: "deviceType", Type: FieldText, Aliases: []string{"type"},
		Normalizer: vocabularyTerm(func(v *Vocabulary) []string { return v.DeviceTypes })},
	{Name: "equipmentRole", Type: FieldText, Aliases: []string{"role"},
		Normalizer: vocabularyTerm(func(v *Vocabulary) []string { return v.EquipmentRoles })},
	{Name: "technology", Type: FieldText,
		Normalizer: vocabularyTerm(func(v *Vocabulary) []string { return v.Technologies })},
	{Name: "domain", Type: FieldText,
		Normalizer: vocabularyTerm(func(v *Vocabulary) []string { return v.Domains })},
	{Name: "subDomain", Type: FieldText,
		Normalizer: vocabularyTerm(func(v *Vocabulary) []string { return v.SubDomains })},
	{Name: "status", Type: FieldEnum, EnumValues: []string{string(StatusActive), string(StatusInactive)},
		Default: string(StatusActive), Normalizer: normalizeStatus},
	{Name: "installationDate", Type: FieldDate, NotFuture: true, Aliases: []string{"installDate"}},
	{Name: "technicianName", Type: FieldText, Aliases: []string{"technician"}},
	{Name: "technicianEmail", Type: FieldText, Format: FormatEmail, Aliases: []string{"email"}},
}

func init() {
	Register(EntityDefinition{
		Info: EntityInfo{
			Key:       DeviceEntity,
			Label:     "Devices",
			UniqueKey: []string{"neName", "siteId"},
		},
		FieldSpecs: deviceFieldSpecs,
		Build:      func(row NormalizedRow) any { return deviceFromRow(row) },
		KeyOf: func(record any) Key {
			d := record.(*Device)
			return deviceKey(d.NEName, d.SiteID)
		},
		Find: func(ctx context.Context, s Store, k Key) (Existing, error) {
			d, err := s.FindDeviceByKey(ctx, k.Value("neName"), k.Value("siteId"))
			if err != nil {
				return Existing{}, err
			}
			return Existing{ID: d.ID, Key: deviceKey(d.NEName, d.SiteID)}, nil
		},
		Create: func(ctx context.Context, s Store, record any) error {
			return s.CreateDevice(ctx, record.(*Device))
		},
		Fields: func(record any) map[string]string { return deviceFields(record.(*Device)) },
		Example: []string{"EXAMPLE001-BBU-01", "EXAMPLE001", "SN123456", "OP-001", "10.0.0.1",
			"00:1a:2b:3c:4d:5e", "BBU5900", "Huawei", "BBU", "Access", "4G/LTE",
			"Radio Access Network (RAN)", "4G eNodeB", "Active", "2024-01-15", "John Doe", "john@example.com"},
	})
}

func deviceKey(neName, siteID string) Key {
	return NewKey([]string{"neName", "siteId"}, neName, siteID)
}

// deviceFromRow builds a Device from a valid row.
func deviceFromRow(row NormalizedRow) *Device {
	return &Device{
		NEName:           row.String("neName"),
		SiteID:           row.String("siteId"),
		SerialNumber:     row.Text("serialNumber"),
		OperatorID:       row.Text("operatorId"),
		IPAddress:        row.Text("ipAddress"),
		MACAddress:       row.Text("macAddress"),
		ModelNumber:      row.Text("modelNumber"),
		Vendor:           row.Text("vendor"),
		DeviceType:       row.Text("deviceType"),
		EquipmentRole:    row.Text("equipmentRole"),
		Technology:       row.Text("technology"),
		Domain:           row.Text("domain"),
		SubDomain:        row.Text("subDomain"),
		Status:           Status(row.String("status")),
		InstallationDate: row.Date("installationDate"),
		TechnicianName:   row.Text("technicianName"),
		TechnicianEmail:  row.Text("technicianEmail"),
	}
}

func deviceFields(d *Device) map[string]string {
	return map[string]string{
		"neName":           d.NEName,
		"siteId":           d.SiteID,
		"serialNumber":     TextValue(d.SerialNumber),
		"operatorId":       TextValue(d.OperatorID),
		"ipAddress":        TextValue(d.IPAddress),
		"macAddress":       TextValue(d.MACAddress),
		"modelNumber":      TextValue(d.ModelNumber),
		"vendor":           TextValue(d.Vendor),
		"deviceType":       TextValue(d.DeviceType),
		"equipmentRole":    TextValue(d.EquipmentRole),
		"technology":       TextValue(d.Technology),
		"domain":           TextValue(d.Domain),
		"subDomain":        TextValue(d.SubDomain),
		"status":           string(d.Status),
		"installationDate": FormatDate(d.InstallationDate),
		"technicianName":   TextValue(d.TechnicianName),
		"technicianEmail":  TextValue(d.TechnicianEmail),
	}
}
