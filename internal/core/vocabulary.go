package core

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Vocabulary holds the curated values offered for descriptive fields. Values
// outside the lists are accepted; matching values are re-cased to the listed
// spelling during normalization.
type Vocabulary struct {
	Vendors        []string `yaml:"vendors" json:"vendors"`
	DeviceTypes    []string `yaml:"deviceTypes" json:"deviceTypes"`
	EquipmentRoles []string `yaml:"equipmentRoles" json:"equipmentRoles"`
	Technologies   []string `yaml:"technologies" json:"technologies"`
	Domains        []string `yaml:"domains" json:"domains"`
	SubDomains     []string `yaml:"subDomains" json:"subDomains"`
	SiteTypes      []string `yaml:"siteTypes" json:"siteTypes"`
	Statuses       []string `yaml:"statuses" json:"statuses"`
	Regions5       []string `yaml:"regions5" json:"regions5"`
	Regions13      []string `yaml:"regions13" json:"regions13"`
}

// DefaultVocabulary returns the built-in lists.
func DefaultVocabulary() *Vocabulary {
	return &Vocabulary{
		Vendors: []string{"Huawei", "Nokia", "Ericsson", "ZTE", "Samsung", "Cisco", "Juniper",
			"Ciena", "Corning", "CommScope", "Other"},
		DeviceTypes: []string{"Router", "Switch", "Access Point", "Firewall", "Load Balancer", "Server",
			"Base Station", "Antenna", "RRU", "BBU", "OLT", "ONT", "DWDM", "Optical Amplifier", "Other"},
		EquipmentRoles: []string{"Core", "Aggregation", "Access", "Edge", "Distribution",
			"Customer Premises", "Transmission", "Other"},
		Technologies: []string{"5G", "4G/LTE", "3G", "2G", "Fiber Optic", "Microwave", "Satellite",
			"Ethernet", "MPLS", "IP", "Other"},
		Domains: []string{"Radio Access Network (RAN)", "Core Network", "Transport Network",
			"Transmission Network", "IT Infrastructure", "Power & Energy", "Other"},
		SubDomains: []string{"5G NR", "4G eNodeB", "EPC", "IMS", "Packet Core", "IP/MPLS",
			"Metro Ethernet", "Fiber Transport", "Microwave Backhaul", "Data Center", "Other"},
		SiteTypes: []string{"Macro Site", "Micro Site", "Indoor", "Outdoor", "Rooftop", "Ground", "Pole",
			"Hub Site", "POP", "Data Center", "Other"},
		Statuses: []string{string(StatusActive), string(StatusInactive)},
		Regions5: []string{"Central", "Eastern", "Western", "Northern", "Southern"},
		Regions13: []string{"Riyadh", "Makkah", "Madinah", "Qassim", "Eastern Province", "Asir", "Tabuk",
			"Hail", "Northern Borders", "Jazan", "Najran", "Al Bahah", "Al Jouf"},
	}
}

// LoadVocabulary reads a YAML file over the defaults. Lists present in the
// file replace the built-in list; omitted lists keep their defaults.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}

	v := DefaultVocabulary()
	if err := yaml.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("parse vocabulary %s: %w", path, err)
	}
	return v, nil
}

var activeVocabulary atomic.Pointer[Vocabulary]

// SetVocabulary replaces the vocabulary used by the normalizer.
func SetVocabulary(v *Vocabulary) {
	if v == nil {
		v = DefaultVocabulary()
	}
	activeVocabulary.Store(v)
}

// CurrentVocabulary returns the vocabulary used by the normalizer.
func CurrentVocabulary() *Vocabulary {
	if v := activeVocabulary.Load(); v != nil {
		return v
	}
	v := DefaultVocabulary()
	activeVocabulary.CompareAndSwap(nil, v)
	return activeVocabulary.Load()
}

// vocabularyTerm returns a normalizer that re-cases a value to the listed
// spelling when it matches case-insensitively and leaves it alone otherwise.
func vocabularyTerm(list func(*Vocabulary) []string) func(string) string {
	return func(s string) string {
		for _, term := range list(CurrentVocabulary()) {
			if strings.EqualFold(term, s) {
				return term
			}
		}
		return s
	}
}
