package solvency

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadTolerances(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "contract.yaml"), `
contract_id: c1
tolerances:
  - hazard_id: exfil
    severity_id: high
    context_class: any
    tau: 0.05
  - hazard_id: exfil
    severity_id: low
    context_class: web_only
    tau: 0.2
`)
	writeFile(t, filepath.Join(dir, "empty.yaml"), "contract_id: c2\n")
	writeFile(t, filepath.Join(dir, "broken.json"), "{")

	tolerances, err := LoadTolerances(dir)
	if err != nil {
		t.Fatalf("LoadTolerances: %v", err)
	}
	if len(tolerances) != 2 {
		t.Fatalf("tolerances = %+v", tolerances)
	}
	if tolerances[0].HazardID != "exfil" || tolerances[0].ContextClass != "any" {
		t.Errorf("tolerance = %+v", tolerances[0])
	}
	if filepath.Base(tolerances[0].File) != "contract.yaml" {
		t.Errorf("file = %s", tolerances[0].File)
	}
}

func TestLoadFits(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "single.json"), `{"hazard_id":"exfil","conservative_epsilon_high":0.02}`)
	writeFile(t, filepath.Join(dir, "many.json"), `[{"hazard_id":"a"},{"hazard_id":"b"}]`)
	// Non-JSON files are not fit artifacts.
	writeFile(t, filepath.Join(dir, "ignored.yaml"), `hazard_id: exfil`)

	fits, err := LoadFits(dir)
	if err != nil {
		t.Fatalf("LoadFits: %v", err)
	}
	if len(fits) != 3 {
		t.Fatalf("fits = %+v", fits)
	}
}

func TestLoadPlans(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "single.yaml"), `
plan_id: prod
context_class: web_only
channel_allocations:
  human_review: 0.5
`)
	writeFile(t, filepath.Join(dir, "grouped.json"),
		`{"plans_by_context":[{"plan_id":"a","context_class":"any"},{"context_class":"web_only"}]}`)
	writeFile(t, filepath.Join(dir, "no_context.yaml"), "plan_id: dangling\n")

	plans, err := LoadPlans(dir)
	if err != nil {
		t.Fatalf("LoadPlans: %v", err)
	}
	if len(plans) != 3 {
		t.Fatalf("plans = %+v", plans)
	}
	byID := make(map[string]Plan)
	for _, p := range plans {
		byID[p.PlanID] = p
	}
	prod := byID["prod"]
	if prod.ContextClass != "web_only" || prod.ChannelAllocations == nil {
		t.Errorf("plan = %+v", prod)
	}
}

func TestLoadersMissingDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent")
	if tolerances, err := LoadTolerances(missing); err != nil || tolerances != nil {
		t.Errorf("LoadTolerances = %v, %v", tolerances, err)
	}
	if fits, err := LoadFits(missing); err != nil || fits != nil {
		t.Errorf("LoadFits = %v, %v", fits, err)
	}
	if plans, err := LoadPlans(missing); err != nil || plans != nil {
		t.Errorf("LoadPlans = %v, %v", plans, err)
	}
}
