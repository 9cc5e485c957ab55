package seed

import (
	"strings"
	"testing"
)

func TestParseDepartments(t *testing.T) {
	in := `
departments:
  - name: " Water Supply Department "
    description: Pipelines and tankers
  - name: Public Works Department
`
	got, err := ParseDepartments(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 departments, got %d", len(got))
	}
	if got[0].Name != "Water Supply Department" || got[0].Description != "Pipelines and tankers" {
		t.Fatalf("unexpected first department: %+v", got[0])
	}
	if got[0].ID == "" || got[0].ID == got[1].ID {
		t.Fatalf("expected distinct ids, got %q and %q", got[0].ID, got[1].ID)
	}
}

func TestParseDepartmentsRejects(t *testing.T) {
	cases := map[string]string{
		"blank name": "departments:\n  - name: \"\"\n",
		"duplicate":  "departments:\n  - name: Roads\n  - name: roads\n",
		"bad yaml":   "departments: [",
	}
	for name, in := range cases {
		if _, err := ParseDepartments(strings.NewReader(in)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseDepartmentsEmpty(t *testing.T) {
	got, err := ParseDepartments(strings.NewReader(""))
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v %v", got, err)
	}
}

func TestDefaultFileParses(t *testing.T) {
	got, err := LoadDepartments("../../config/departments.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("default department file is empty")
	}
}
