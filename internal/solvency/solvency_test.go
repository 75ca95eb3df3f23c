package solvency

import (
	"math"
	"strings"
	"testing"

	"github.com/caliperhq/gatecheck/internal/lattice"
)

func testLattice(t *testing.T) *lattice.Lattice {
	t.Helper()
	l, err := lattice.FromDocument(map[string]any{
		"version": "1.0.0",
		"dimensions": map[string]any{
			"tool_access": map[string]any{
				"type":  "set",
				"atoms": []any{"web", "email"},
			},
		},
		"contexts": map[string]any{
			"any":      map[string]any{"tool_access": "*"},
			"web_only": map[string]any{"tool_access": []any{"web"}},
			"email_only": map[string]any{
				"tool_access": []any{"email"},
			},
		},
	})
	if err != nil {
		t.Fatalf("FromDocument: %v", err)
	}
	return l
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestFitRisk(t *testing.T) {
	fit := Fit{Data: map[string]any{
		"conservative_epsilon_high": 0.02,
		"conservative_k_low":        0.01,
	}, File: "fit.json"}

	risk, err := FitRisk(fit, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !approx(risk, 0.02) {
		t.Errorf("risk = %v, want bare epsilon", risk)
	}

	risk, err = FitRisk(fit, map[string]any{"human_review": 0.5, "automated": 2.0})
	if err != nil {
		t.Fatal(err)
	}
	// 0.02 + 0.01/0.5 + 0.01/2.0
	if !approx(risk, 0.045) {
		t.Errorf("risk = %v, want 0.045", risk)
	}
}

func TestFitRiskPerChannelKLow(t *testing.T) {
	fit := Fit{Data: map[string]any{
		"epsilon_high": 0.01,
		"k_low_by_channel": map[string]any{
			"human_review": 0.02,
		},
	}, File: "fit.json"}

	risk, err := FitRisk(fit, map[string]any{"human_review": 2.0, "automated": 1.0})
	if err != nil {
		t.Fatal(err)
	}
	// automated has no k_low anywhere and contributes nothing.
	if !approx(risk, 0.02) {
		t.Errorf("risk = %v, want 0.02", risk)
	}
}

func TestFitRiskNullKLowSkipsChannel(t *testing.T) {
	fit := Fit{Data: map[string]any{
		"conservative_epsilon_high": 0.02,
		"conservative_k_low":        0.01,
		"k_low_by_channel": map[string]any{
			"human_review": nil,
		},
	}, File: "fit.json"}

	risk, err := FitRisk(fit, map[string]any{"human_review": 0.5, "automated": 2.0})
	if err != nil {
		t.Fatal(err)
	}
	// human_review is explicitly nulled out; only automated uses the
	// default k_low: 0.02 + 0.01/2.0.
	if !approx(risk, 0.025) {
		t.Errorf("risk = %v, want 0.025", risk)
	}

	nullDefault := Fit{Data: map[string]any{
		"conservative_epsilon_high": 0.02,
		"conservative_k_low":        nil,
	}, File: "fit.json"}
	risk, err = FitRisk(nullDefault, map[string]any{"human_review": 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if !approx(risk, 0.02) {
		t.Errorf("risk = %v, want bare epsilon", risk)
	}
}

func TestFitRiskBadInputs(t *testing.T) {
	fit := Fit{Data: map[string]any{
		"conservative_epsilon_high": 0.02,
		"conservative_k_low":        0.01,
	}, File: "fit.json"}

	if _, err := FitRisk(fit, map[string]any{"human_review": 0.0}); err == nil {
		t.Error("zero allocation should be an error")
	}
	if _, err := FitRisk(fit, map[string]any{"human_review": -1.0}); err == nil {
		t.Error("negative allocation should be an error")
	}
	if _, err := FitRisk(Fit{Data: map[string]any{}, File: "fit.json"}, nil); err == nil {
		t.Error("missing epsilon should be an error")
	}
	if _, err := FitRisk(fit, map[string]any{"human_review": "plenty"}); err == nil {
		t.Error("non-numeric allocation should be an error")
	}
}

func solventInputs() ([]Tolerance, []Fit, []Plan) {
	tolerances := []Tolerance{
		{HazardID: "exfil", SeverityID: "high", ContextClass: "any", Tau: 0.10, File: "contract.yaml"},
		{HazardID: "exfil", SeverityID: "high", ContextClass: "web_only", Tau: 0.05, File: "contract.yaml"},
	}
	fits := []Fit{
		{Data: map[string]any{
			"hazard_id":                 "exfil",
			"severity_id":               "high",
			"context_class":             "any",
			"conservative_epsilon_high": 0.06,
		}, File: "fit.json"},
	}
	plans := []Plan{
		{PlanID: "prod", ContextClass: "web_only", File: "plan.yaml"},
	}
	return tolerances, fits, plans
}

func TestEvaluateStrictestTauWins(t *testing.T) {
	lat := testLattice(t)
	tolerances, fits, plans := solventInputs()

	// Both tolerances cover web_only; the 0.05 tau governs and the 0.06
	// worst-case risk breaches it.
	result := Evaluate(lat, tolerances, fits, plans)
	if result.PlansChecked != 1 {
		t.Errorf("plans checked = %d", result.PlansChecked)
	}
	if result.Solvent() {
		t.Fatal("expected a solvency failure")
	}
	if len(result.Failures) != 1 {
		t.Fatalf("failures = %+v", result.Failures)
	}
	f := result.Failures[0]
	if f.Plan != "prod" || f.HazardID != "exfil" || f.SeverityID != "high" {
		t.Errorf("failure = %+v", f)
	}
	if !strings.Contains(f.Reason, "0.06") || !strings.Contains(f.Reason, "0.05") {
		t.Errorf("reason = %q, should show risk and tau", f.Reason)
	}
}

func TestEvaluateSolvent(t *testing.T) {
	lat := testLattice(t)
	tolerances, fits, plans := solventInputs()
	fits[0].Data["conservative_epsilon_high"] = 0.04

	result := Evaluate(lat, tolerances, fits, plans)
	if !result.Solvent() {
		t.Errorf("failures = %+v", result.Failures)
	}
}

func TestEvaluateWorstRiskWins(t *testing.T) {
	lat := testLattice(t)
	tolerances, fits, plans := solventInputs()
	tolerances = tolerances[:1] // only the 0.10 tolerance
	fits = append(fits, Fit{Data: map[string]any{
		"hazard_id":                 "exfil",
		"severity_id":               "high",
		"context_class":             "web_only",
		"conservative_epsilon_high": 0.12,
	}, File: "fit2.json"})

	result := Evaluate(lat, tolerances, fits, plans)
	if result.Solvent() {
		t.Fatal("worst covering risk 0.12 should breach tau 0.10")
	}
}

func TestEvaluateNonCoveringIgnored(t *testing.T) {
	lat := testLattice(t)
	tolerances, fits, plans := solventInputs()

	// A stricter tolerance and a hotter fit in a sibling context do not
	// apply to web_only plans.
	tolerances = append(tolerances, Tolerance{
		HazardID: "exfil", SeverityID: "high", ContextClass: "email_only", Tau: 0.001, File: "contract.yaml",
	})
	fits = append(fits, Fit{Data: map[string]any{
		"hazard_id":                 "exfil",
		"severity_id":               "high",
		"context_class":             "email_only",
		"conservative_epsilon_high": 0.99,
	}, File: "fit2.json"})
	fits[0].Data["conservative_epsilon_high"] = 0.04

	result := Evaluate(lat, tolerances, fits, plans)
	if !result.Solvent() {
		t.Errorf("failures = %+v", result.Failures)
	}
}

func TestEvaluateUncovered(t *testing.T) {
	lat := testLattice(t)

	tolerances := []Tolerance{
		{HazardID: "exfil", SeverityID: "high", ContextClass: "web_only", Tau: 0.05, File: "contract.yaml"},
	}
	plans := []Plan{{PlanID: "prod", ContextClass: "any", File: "plan.yaml"}}

	// No tolerance covers the broader context.
	result := Evaluate(lat, tolerances, nil, plans)
	if result.Solvent() {
		t.Fatal("uncovered plan should fail")
	}
	if result.Failures[0].Reason != "No tolerance covers plan context" {
		t.Errorf("reason = %q", result.Failures[0].Reason)
	}

	// Tolerance covers but no fit does.
	tolerances[0].ContextClass = "any"
	result = Evaluate(lat, tolerances, nil, plans)
	if result.Solvent() {
		t.Fatal("plan without a covering fit should fail")
	}
	if result.Failures[0].Reason != "No risk fit covers plan context" {
		t.Errorf("reason = %q", result.Failures[0].Reason)
	}
}

func TestEvaluateUnparseableTau(t *testing.T) {
	lat := testLattice(t)

	tolerances := []Tolerance{
		{HazardID: "exfil", SeverityID: "high", ContextClass: "any", Tau: "strict", File: "contract.yaml"},
	}
	plans := []Plan{{PlanID: "prod", ContextClass: "web_only", File: "plan.yaml"}}

	// The tolerance covers the plan, so the failure names the bad tau
	// rather than claiming nothing applies.
	result := Evaluate(lat, tolerances, nil, plans)
	if result.Solvent() {
		t.Fatal("unparseable tau should fail")
	}
	reasons := make([]string, len(result.Failures))
	for i, f := range result.Failures {
		reasons[i] = f.Reason
	}
	joined := strings.Join(reasons, "; ")
	if !strings.Contains(joined, "No valid tau values found") {
		t.Errorf("reasons = %q, want a no-valid-tau failure", joined)
	}
	if strings.Contains(joined, "No tolerance covers plan context") {
		t.Errorf("reasons = %q, covering tolerance was counted as absent", joined)
	}
}

func TestEvaluateBadPlanAllocation(t *testing.T) {
	lat := testLattice(t)
	tolerances, fits, plans := solventInputs()
	fits[0].Data["conservative_k_low"] = 0.01
	plans[0].ChannelAllocations = map[string]any{"human_review": 0}

	result := Evaluate(lat, tolerances, fits, plans)
	if result.Solvent() {
		t.Fatal("invalid allocation should surface as a failure")
	}
	if !strings.Contains(result.Failures[0].Reason, "must be > 0") {
		t.Errorf("reason = %q", result.Failures[0].Reason)
	}
}
