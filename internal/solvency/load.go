package solvency

import (
	"path/filepath"

	"github.com/caliperhq/gatecheck/internal/artifact"
)

// LoadTolerances reads every safety contract under dir and flattens their
// tolerances arrays. Unreadable files are skipped: a missing tolerance
// surfaces later as an uncovered plan, which fails loudly.
func LoadTolerances(dir string) ([]Tolerance, error) {
	files, err := artifact.IterDataFiles(dir)
	if err != nil {
		return nil, err
	}
	var tolerances []Tolerance
	for _, path := range files {
		doc, err := artifact.LoadDataFile(path)
		if err != nil {
			continue
		}
		contract, ok := doc.(map[string]any)
		if !ok {
			continue
		}
		list, _ := contract["tolerances"].([]any)
		for _, raw := range list {
			tol, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			tolerances = append(tolerances, Tolerance{
				HazardID:     str(tol["hazard_id"]),
				SeverityID:   str(tol["severity_id"]),
				ContextClass: str(tol["context_class"]),
				Tau:          tol["tau"],
				File:         path,
			})
		}
	}
	return tolerances, nil
}

// LoadFits reads every risk-fit JSON file under dir. A file may hold one
// fit or a list of fits.
func LoadFits(dir string) ([]Fit, error) {
	files, err := artifact.IterDataFiles(dir)
	if err != nil {
		return nil, err
	}
	var fits []Fit
	for _, path := range files {
		if filepath.Ext(path) != ".json" {
			continue
		}
		doc, err := artifact.LoadDataFile(path)
		if err != nil {
			continue
		}
		var items []any
		switch v := doc.(type) {
		case []any:
			items = v
		default:
			items = []any{v}
		}
		for _, item := range items {
			data, ok := item.(map[string]any)
			if !ok {
				continue
			}
			fits = append(fits, Fit{Data: data, File: path})
		}
	}
	return fits, nil
}

// LoadPlans reads every oversight plan under dir. Plan documents may be a
// list of plans, an object with plans_by_context or plans, or a single
// plan object; precedence is fixed in that order.
func LoadPlans(dir string) ([]Plan, error) {
	files, err := artifact.IterDataFiles(dir)
	if err != nil {
		return nil, err
	}
	var plans []Plan
	for _, path := range files {
		doc, err := artifact.LoadDataFile(path)
		if err != nil {
			continue
		}
		for _, raw := range planEntries(doc) {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			contextClass := str(entry["context_class"])
			if contextClass == "" {
				continue
			}
			allocations, _ := entry["channel_allocations"].(map[string]any)
			plans = append(plans, Plan{
				PlanID:             str(entry["plan_id"]),
				ContextClass:       contextClass,
				ChannelAllocations: allocations,
				File:               path,
			})
		}
	}
	return plans, nil
}

func planEntries(doc any) []any {
	switch v := doc.(type) {
	case []any:
		return v
	case map[string]any:
		if list, ok := v["plans_by_context"].([]any); ok {
			return list
		}
		if list, ok := v["plans"].([]any); ok {
			return list
		}
		if _, ok := v["context_class"]; ok {
			return []any{v}
		}
	}
	return nil
}
