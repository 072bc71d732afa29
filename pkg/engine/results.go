package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-go-golems/offerforge/pkg/runner"
)

type HealthResult struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

type ProjectResult struct {
	Name   string `json:"name"`
	ID     string `json:"id"`
	Status string `json:"status"`
}

type OfferResult struct {
	Headline   string `json:"headline"`
	Bonuses    int    `json:"bonuses"`
	Guarantees int    `json:"guarantees"`
}

const (
	VSLGenerated = "Gerado"
	VSLMissing   = "Erro"
)

type MaterialsResult struct {
	VSL    string `json:"vsl"`
	Emails int    `json:"emails"`
	Social int    `json:"social"`
}

type LandingResult struct {
	Template string `json:"template"`
	SizeKB   int    `json:"size_kb"`
}

type ExportFile struct {
	Type   string `json:"type"`
	SizeKB int    `json:"size_kb"`
	Path   string `json:"path,omitempty"`
}

type ExportResult []ExportFile

// sizeKB rounds to the nearest KiB.
func sizeKB(n int) int {
	return int(math.Round(float64(n) / 1024))
}

// Summarize renders the built-in one-line summary of a step. Failed steps show their
// error, steps without a result show their status.
func Summarize(step runner.Step) string {
	switch step.Status {
	case runner.StatusFailed:
		return "failed: " + step.Error
	case runner.StatusDone:
	default:
		return string(step.Status)
	}

	switch r := step.Result.(type) {
	case HealthResult:
		return fmt.Sprintf("backend %s, %d services ready", r.Status, len(r.Services))
	case ProjectResult:
		return fmt.Sprintf("%s (%s) %s", r.Name, r.ID, r.Status)
	case OfferResult:
		return fmt.Sprintf("%q, %d bonuses, %d guarantees", r.Headline, r.Bonuses, r.Guarantees)
	case MaterialsResult:
		return fmt.Sprintf("VSL: %s, %d e-mails, %d social posts", r.VSL, r.Emails, r.Social)
	case LandingResult:
		return fmt.Sprintf("template %s, %d KB", r.Template, r.SizeKB)
	case ExportResult:
		parts := make([]string, 0, len(r))
		for _, f := range r {
			parts = append(parts, fmt.Sprintf("%s %d KB", f.Type, f.SizeKB))
		}
		return strings.Join(parts, ", ")
	case nil:
		return "done"
	default:
		return fmt.Sprintf("%v", r)
	}
}
