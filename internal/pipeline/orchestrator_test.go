package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sin-text/backend/internal/config"
	"github.com/sin-text/backend/internal/models"
	"github.com/sin-text/backend/internal/observability"
	"github.com/sin-text/backend/internal/prompt"
	"github.com/sin-text/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTemplates = []string{"TPL-A", "TPL-B", "TPL-C"}

func newOrchestrator(c Completer, timeout time.Duration, parallel bool) *Orchestrator {
	return NewOrchestrator(c, OrchestratorOptions{StageTimeout: timeout, Parallel: parallel}, observability.Nop())
}

func TestOrchestrator_SingleShot(t *testing.T) {
	completer := testutil.NewFakeCompleter(testutil.Reply{Text: "<h2>Informazioni Generali</h2>", Model: "m1"})
	plan, err := PlanFor(config.ModeSingle, testTemplates)
	require.NoError(t, err)
	rec := testutil.NewRecorder()

	doc, err := newOrchestrator(completer, time.Second, false).Run(context.Background(), plan, "testo", rec)
	require.NoError(t, err)

	calls := completer.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, prompt.SystemMessage, calls[0].System)
	assert.Equal(t, prompt.Assemble(testTemplates, "testo"), calls[0].User)

	assert.Equal(t, "m1", doc.Model)
	assert.Contains(t, doc.HTML, "<h2>Informazioni Generali</h2>")
	assert.Equal(t, []int{10, 30, 90}, rec.Markers())
}

func TestOrchestrator_SegmentedOrder(t *testing.T) {
	completer := testutil.NewFakeCompleter(
		testutil.Reply{Text: "<p>BLOCCO-1</p>"},
		testutil.Reply{Text: "<p>BLOCCO-2</p>"},
		testutil.Reply{Text: "<p>BLOCCO-3</p>"},
	)
	plan, err := PlanFor(config.ModeSegmented, testTemplates)
	require.NoError(t, err)
	rec := testutil.NewRecorder()

	doc, err := newOrchestrator(completer, time.Second, false).Run(context.Background(), plan, "testo", rec)
	require.NoError(t, err)

	calls := completer.Calls()
	require.Len(t, calls, 3)
	for i, call := range calls {
		assert.True(t, strings.HasPrefix(call.User, testTemplates[i]), "call %d", i)
		assert.Contains(t, call.User, "testo")
	}

	require.Len(t, doc.Results, 3)
	i1 := strings.Index(doc.HTML, "BLOCCO-1")
	i2 := strings.Index(doc.HTML, "BLOCCO-2")
	i3 := strings.Index(doc.HTML, "BLOCCO-3")
	assert.True(t, i1 >= 0 && i1 < i2 && i2 < i3)
	assert.Equal(t, []int{0, 10, 30, 30, 40, 60, 60, 70, 90}, rec.Markers())
}

func TestOrchestrator_ParallelKeepsOrdinalOrder(t *testing.T) {
	completer := &testutil.FakeCompleter{Match: map[string]testutil.Reply{
		"TPL-A": {Text: "<p>BLOCCO-1</p>", Delay: 80 * time.Millisecond},
		"TPL-B": {Text: "<p>BLOCCO-2</p>", Delay: 40 * time.Millisecond},
		"TPL-C": {Text: "<p>BLOCCO-3</p>"},
	}}
	plan, err := PlanFor(config.ModeSegmented, testTemplates)
	require.NoError(t, err)
	rec := testutil.NewRecorder()

	doc, err := newOrchestrator(completer, time.Second, true).Run(context.Background(), plan, "testo", rec)
	require.NoError(t, err)

	assert.Len(t, completer.Calls(), 3)
	for i, res := range doc.Results {
		assert.Equal(t, i+1, res.Ordinal)
	}
	i1 := strings.Index(doc.HTML, "BLOCCO-1")
	i2 := strings.Index(doc.HTML, "BLOCCO-2")
	i3 := strings.Index(doc.HTML, "BLOCCO-3")
	assert.True(t, i1 >= 0 && i1 < i2 && i2 < i3)

	assert.Equal(t, []int{10, 30, 60, 90}, rec.Markers())
}

func TestOrchestrator_InvalidResponse(t *testing.T) {
	completer := testutil.NewFakeCompleter(testutil.Reply{Text: "   "})
	plan, err := PlanFor(config.ModeSingle, testTemplates)
	require.NoError(t, err)
	rec := testutil.NewRecorder()

	doc, err := newOrchestrator(completer, time.Second, false).Run(context.Background(), plan, "testo", rec)
	require.Error(t, err)
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, models.ErrInvalidResponse)
	assert.NotContains(t, rec.Markers(), 90)
}

func TestOrchestrator_Timeout(t *testing.T) {
	completer := testutil.NewFakeCompleter(testutil.Reply{
		Text:          "<p>troppo tardi</p>",
		Delay:         2 * time.Second,
		IgnoreContext: true,
	})
	plan, err := PlanFor(config.ModeSingle, testTemplates)
	require.NoError(t, err)

	start := time.Now()
	_, err = newOrchestrator(completer, 50*time.Millisecond, false).Run(context.Background(), plan, "testo", testutil.NewRecorder())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrTimeout)
	assert.Less(t, elapsed, time.Second)

	pe := models.AsPipelineError(err, models.KindInference)
	assert.Equal(t, 1, pe.Stage)
}

func TestOrchestrator_SegmentedFailureStopsRun(t *testing.T) {
	completer := testutil.NewFakeCompleter(
		testutil.Reply{Text: "<p>uno</p>"},
		testutil.Reply{Err: models.InferenceFailure(models.ReasonStatus, "API returned status 502", nil)},
		testutil.Reply{Text: "<p>tre</p>"},
	)
	plan, err := PlanFor(config.ModeSegmented, testTemplates)
	require.NoError(t, err)

	_, err = newOrchestrator(completer, time.Second, false).Run(context.Background(), plan, "testo", testutil.NewRecorder())
	require.Error(t, err)

	pe := models.AsPipelineError(err, models.KindInference)
	assert.Equal(t, models.ReasonStatus, pe.Reason)
	assert.Equal(t, 2, pe.Stage)
	assert.Len(t, completer.Calls(), 2)
}
