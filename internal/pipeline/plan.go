// Package pipeline drives one summarization run: extraction, the inference
// stages, document assembly and artifact persistence.
package pipeline

import (
	"fmt"

	"github.com/sin-text/backend/internal/config"
	"github.com/sin-text/backend/internal/prompt"
)

// segmentWidth is the share of the 0..90 progress range owned by each
// segmented stage.
const segmentWidth = 30

// Markers are the numeric progress values reported around one stage call.
type Markers struct {
	Start int // before the prompt is built
	Sent  int // request dispatched
	Done  int // response received
}

// Stage is one inference request in a plan.
type Stage struct {
	Ordinal   int // 1-based
	Of        int
	Templates []string
	Markers   Markers
}

// Label names the stage in progress messages.
func (s Stage) Label() string {
	if s.Of <= 1 {
		return "documento completo"
	}
	return fmt.Sprintf("parte %d di %d", s.Ordinal, s.Of)
}

// PlanFor returns the stages for mode. The single-shot plan sends every
// template in one request; the segmented plan sends one template per request.
func PlanFor(mode string, templates []string) ([]Stage, error) {
	if len(templates) != prompt.TemplateCount {
		return nil, fmt.Errorf("expected %d templates, got %d", prompt.TemplateCount, len(templates))
	}

	switch mode {
	case config.ModeSingle, "":
		return []Stage{{
			Ordinal:   1,
			Of:        1,
			Templates: templates,
			Markers:   Markers{Start: 10, Sent: 30, Done: 90},
		}}, nil

	case config.ModeSegmented:
		plan := make([]Stage, len(templates))
		for i, tpl := range templates {
			k := i + 1
			plan[i] = Stage{
				Ordinal:   k,
				Of:        len(templates),
				Templates: []string{tpl},
				Markers: Markers{
					Start: (k - 1) * segmentWidth,
					Sent:  (k-1)*segmentWidth + 10,
					Done:  k * segmentWidth,
				},
			}
		}
		return plan, nil

	default:
		return nil, fmt.Errorf("unknown pipeline mode %q", mode)
	}
}
