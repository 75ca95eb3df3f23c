// Package solvency verifies that oversight plans satisfy the strictest
// applicable risk tolerances under worst-case fitted risk. Applicability
// is decided by the context lattice: a tolerance or fit governs a plan
// when its declared context covers the plan's context. Aggregation is
// deliberately minimum-tau / maximum-risk, never an average.
package solvency

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/caliperhq/gatecheck/internal/lattice"
)

// Tolerance is one declared maximum acceptable risk for a hazard,
// severity, and context triple.
type Tolerance struct {
	HazardID     string
	SeverityID   string
	ContextClass string
	Tau          any
	File         string
}

// Fit is a fitted worst-case risk estimate for a hazard/severity/context
// triple, optionally scaled by per-channel oversight allocation.
type Fit struct {
	Data map[string]any
	File string
}

// Plan is a deployment's oversight configuration for one context.
type Plan struct {
	PlanID             string
	ContextClass       string
	ChannelAllocations map[string]any
	File               string
}

// Finding is one solvency failure, tied to the plan and hazard pair that
// produced it.
type Finding struct {
	Plan       string `json:"plan"`
	Reason     string `json:"reason"`
	HazardID   string `json:"hazard_id"`
	SeverityID string `json:"severity_id"`
	File       string `json:"file,omitempty"`
}

// Result is the outcome of evaluating every plan against every declared
// hazard pair.
type Result struct {
	PlansChecked int       `json:"plans_checked"`
	Failures     []Finding `json:"failures,omitempty"`
}

// Solvent reports whether no failures were found.
func (r Result) Solvent() bool { return len(r.Failures) == 0 }

// FitRisk computes a fit's risk under a plan's channel allocations:
// conservative_epsilon_high plus, per channel, the channel's conservative
// k_low divided by its allocation. A non-positive allocation is an error;
// a channel with no k_low contributes nothing.
func FitRisk(fit Fit, allocations map[string]any) (float64, error) {
	epsilon, ok := fit.Data["conservative_epsilon_high"]
	if !ok {
		epsilon = fit.Data["epsilon_high"]
	}
	risk, err := numeric(epsilon, "conservative_epsilon_high", fit.File)
	if err != nil {
		return 0, err
	}
	if allocations == nil {
		return risk, nil
	}

	kLowDefault, hasDefault := fit.Data["conservative_k_low"]
	if !hasDefault {
		kLowDefault, hasDefault = fit.Data["k_low"]
	}
	kLowByChannel, _ := fit.Data["k_low_by_channel"].(map[string]any)

	channels := make([]string, 0, len(allocations))
	for channel := range allocations {
		channels = append(channels, channel)
	}
	sort.Strings(channels)

	for _, channel := range channels {
		allocation, err := numeric(allocations[channel], fmt.Sprintf("channel_allocations[%s]", channel), fit.File)
		if err != nil {
			return 0, err
		}
		if allocation <= 0 {
			return 0, fmt.Errorf("channel_allocations[%s] must be > 0 in %s", channel, fit.File)
		}
		kLow, ok := kLowByChannel[channel]
		if !ok {
			if !hasDefault {
				continue
			}
			kLow = kLowDefault
		}
		// An explicit null k_low means the channel contributes nothing.
		if kLow == nil {
			continue
		}
		k, err := numeric(kLow, fmt.Sprintf("k_low[%s]", channel), fit.File)
		if err != nil {
			return 0, err
		}
		risk += k / allocation
	}
	return risk, nil
}

// Evaluate checks every plan against every declared (hazard, severity)
// pair: the strictest covering tolerance must dominate the worst-case
// risk across every covering fit.
func Evaluate(lat *lattice.Lattice, tolerances []Tolerance, fits []Fit, plans []Plan) Result {
	result := Result{PlansChecked: len(plans)}

	hazards := hazardPairs(tolerances)
	for _, plan := range plans {
		label := plan.PlanID
		if label == "" {
			label = plan.ContextClass
		}
		for _, hz := range hazards {
			result.Failures = append(result.Failures,
				evaluatePlanHazard(lat, plan, label, hz, tolerances, fits)...)
		}
	}
	return result
}

type hazardPair struct {
	hazardID   string
	severityID string
}

func hazardPairs(tolerances []Tolerance) []hazardPair {
	seen := make(map[hazardPair]bool)
	var pairs []hazardPair
	for _, tol := range tolerances {
		if tol.HazardID == "" || tol.SeverityID == "" {
			continue
		}
		pair := hazardPair{tol.HazardID, tol.SeverityID}
		if !seen[pair] {
			seen[pair] = true
			pairs = append(pairs, pair)
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].hazardID != pairs[j].hazardID {
			return pairs[i].hazardID < pairs[j].hazardID
		}
		return pairs[i].severityID < pairs[j].severityID
	})
	return pairs
}

func evaluatePlanHazard(lat *lattice.Lattice, plan Plan, label string, hz hazardPair, tolerances []Tolerance, fits []Fit) []Finding {
	var failures []Finding
	fail := func(reason, file string) {
		failures = append(failures, Finding{
			Plan:       label,
			Reason:     reason,
			HazardID:   hz.hazardID,
			SeverityID: hz.severityID,
			File:       file,
		})
	}

	// Strictest tolerance whose context covers the plan's.
	var taus []float64
	covering := 0
	for _, tol := range tolerances {
		if tol.HazardID != hz.hazardID || tol.SeverityID != hz.severityID {
			continue
		}
		if tol.ContextClass == "" {
			fail("Tolerance missing context_class", tol.File)
			continue
		}
		covered, err := lat.Covers(tol.ContextClass, plan.ContextClass)
		if err != nil {
			fail(err.Error(), tol.File)
			continue
		}
		if !covered {
			continue
		}
		covering++
		tau, err := numeric(tol.Tau, "tau", tol.File)
		if err != nil {
			fail(err.Error(), tol.File)
			continue
		}
		taus = append(taus, tau)
	}
	if len(taus) == 0 {
		if covering > 0 {
			fail("No valid tau values found", plan.File)
		} else {
			fail("No tolerance covers plan context", plan.File)
		}
		return failures
	}
	strictest := taus[0]
	for _, tau := range taus[1:] {
		if tau < strictest {
			strictest = tau
		}
	}

	// Worst-case risk across every fit whose context covers the plan's.
	var risks []float64
	for _, fit := range fits {
		if str(fit.Data["hazard_id"]) != hz.hazardID || str(fit.Data["severity_id"]) != hz.severityID {
			continue
		}
		fitContext := str(fit.Data["context_class"])
		if fitContext == "" {
			fail("Risk fit missing context_class", fit.File)
			continue
		}
		covered, err := lat.Covers(fitContext, plan.ContextClass)
		if err != nil {
			fail(err.Error(), fit.File)
			continue
		}
		if !covered {
			continue
		}
		risk, err := FitRisk(fit, plan.ChannelAllocations)
		if err != nil {
			fail(err.Error(), fit.File)
			continue
		}
		risks = append(risks, risk)
	}
	if len(risks) == 0 {
		fail("No risk fit covers plan context", plan.File)
		return failures
	}
	worst := risks[0]
	for _, risk := range risks[1:] {
		if risk > worst {
			worst = risk
		}
	}

	if worst > strictest {
		fail(fmt.Sprintf("Risk %.6g exceeds tau %.6g", worst, strictest), plan.File)
	}
	return failures
}

// numeric converts a decoded document value to float64, naming the field
// and source file on failure.
func numeric(v any, field, source string) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err == nil {
			return f, nil
		}
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("invalid numeric %q in %s", field, source)
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
