package core

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestLoadVocabulary_OverridesListedOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	data := "vendors:\n  - Acme\n  - Globex\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	v, err := LoadVocabulary(path)
	if err != nil {
		t.Fatalf("LoadVocabulary: %v", err)
	}
	if !slices.Equal(v.Vendors, []string{"Acme", "Globex"}) {
		t.Errorf("Vendors = %v", v.Vendors)
	}
	if !slices.Equal(v.Regions5, DefaultVocabulary().Regions5) {
		t.Errorf("omitted list should keep defaults, got %v", v.Regions5)
	}
}

func TestLoadVocabulary_Errors(t *testing.T) {
	if _, err := LoadVocabulary(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("vendors: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadVocabulary(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestVocabularyTerm(t *testing.T) {
	t.Cleanup(func() { SetVocabulary(nil) })
	SetVocabulary(&Vocabulary{Vendors: []string{"Acme"}})

	term := vocabularyTerm(func(v *Vocabulary) []string { return v.Vendors })
	if got := term("ACME"); got != "Acme" {
		t.Errorf("term(ACME) = %q", got)
	}
	if got := term("Huawei"); got != "Huawei" {
		t.Errorf("values outside the list pass through, got %q", got)
	}

	SetVocabulary(nil)
	if got := term("huawei"); got != "Huawei" {
		t.Errorf("after reset term(huawei) = %q", got)
	}
}
