package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sin-text/backend/internal/document"
	"github.com/sin-text/backend/internal/inference"
	"github.com/sin-text/backend/internal/models"
	"github.com/sin-text/backend/internal/progress"
	"github.com/sin-text/backend/internal/prompt"
	"golang.org/x/sync/errgroup"
)

// Completer sends one system+user exchange to the inference provider.
type Completer interface {
	Complete(ctx context.Context, system, user string) (*inference.Completion, error)
}

// OrchestratorOptions tunes how stages are executed.
type OrchestratorOptions struct {
	System       string
	StageTimeout time.Duration
	Parallel     bool
}

// Orchestrator runs a stage plan against a Completer and assembles the
// results into one HTML document.
type Orchestrator struct {
	completer Completer
	system    string
	timeout   time.Duration
	parallel  bool
	log       zerolog.Logger
}

func NewOrchestrator(completer Completer, opts OrchestratorOptions, log zerolog.Logger) *Orchestrator {
	if opts.System == "" {
		opts.System = prompt.SystemMessage
	}
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = 600 * time.Second
	}
	return &Orchestrator{
		completer: completer,
		system:    opts.System,
		timeout:   opts.StageTimeout,
		parallel:  opts.Parallel,
		log:       log.With().Str("component", "orchestrator").Logger(),
	}
}

// Run executes every stage of plan over text. Any stage failure aborts the
// run; no partial document is returned.
func (o *Orchestrator) Run(ctx context.Context, plan []Stage, text string, sink progress.Sink) (*models.AssembledDocument, error) {
	if len(plan) == 0 {
		return nil, models.ValidationFailure("empty stage plan", nil)
	}

	var (
		results []models.StageResult
		err     error
	)
	if o.parallel && len(plan) > 1 {
		results, err = o.runParallel(ctx, plan, text, sink)
	} else {
		results, err = o.runSequential(ctx, plan, text, sink)
	}
	if err != nil {
		return nil, err
	}

	return &models.AssembledDocument{
		HTML:    document.Assemble(results),
		Results: results,
		Model:   results[0].Model,
	}, nil
}

func (o *Orchestrator) runSequential(ctx context.Context, plan []Stage, text string, sink progress.Sink) ([]models.StageResult, error) {
	results := make([]models.StageResult, 0, len(plan))
	for _, st := range plan {
		progress.Emit(sink, fmt.Sprintf("Inizio elaborazione: %s", st.Label()), st.Markers.Start)

		user := prompt.Assemble(st.Templates, text)
		o.log.Debug().Int("stage", st.Ordinal).Int("prompt_length", len(user)).Msg("sending stage")
		progress.Emit(sink, fmt.Sprintf("Invio del prompt a Claude: %s", st.Label()), st.Markers.Sent)

		res, err := o.call(ctx, st, user)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)

		progress.Emit(sink, fmt.Sprintf("Analisi completata: %s", st.Label()), st.Markers.Done)
	}
	return results, nil
}

// runParallel issues every stage at once. Progress stays monotonic: the done
// marker reported after each response is that of the n-th completed stage,
// whichever stage it was.
func (o *Orchestrator) runParallel(ctx context.Context, plan []Stage, text string, sink progress.Sink) ([]models.StageResult, error) {
	progress.Emit(sink, fmt.Sprintf("Invio di %d parti in parallelo", len(plan)), plan[0].Markers.Sent)

	results := make([]models.StageResult, len(plan))
	var (
		mu        sync.Mutex
		completed int
	)

	g, gctx := errgroup.WithContext(ctx)
	for i, st := range plan {
		i, st := i, st
		g.Go(func() error {
			res, err := o.call(gctx, st, prompt.Assemble(st.Templates, text))
			if err != nil {
				return err
			}
			results[i] = *res

			mu.Lock()
			defer mu.Unlock()
			completed++
			progress.Emit(sink, fmt.Sprintf("Analisi completata: %s", st.Label()), plan[completed-1].Markers.Done)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

type outcome struct {
	completion *inference.Completion
	err        error
}

// call performs one stage request bounded by the stage timeout. The request
// races the timer explicitly so a Completer that ignores its context still
// cannot hold the run past the deadline.
func (o *Orchestrator) call(ctx context.Context, st Stage, user string) (*models.StageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	started := time.Now()
	done := make(chan outcome, 1)
	go func() {
		c, err := o.completer.Complete(ctx, o.system, user)
		done <- outcome{completion: c, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, stageError(st, models.AsPipelineError(out.err, models.KindInference))
		}
		if out.completion == nil || strings.TrimSpace(out.completion.Text) == "" {
			return nil, stageError(st, models.InferenceFailure(models.ReasonInvalidResponse, "empty completion content", nil))
		}
		o.log.Info().
			Int("stage", st.Ordinal).
			Int("response_length", len(out.completion.Text)).
			Dur("elapsed", time.Since(started)).
			Msg("stage completed")
		return &models.StageResult{
			Ordinal: st.Ordinal,
			Text:    out.completion.Text,
			Model:   out.completion.Model,
		}, nil

	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, stageError(st, models.InferenceFailure(models.ReasonTimeout,
				fmt.Sprintf("%s exceeded %s", st.Label(), o.timeout), ctx.Err()))
		}
		return nil, stageError(st, models.InferenceFailure(models.ReasonTransport, "request cancelled", ctx.Err()))
	}
}

func stageError(st Stage, pe *models.PipelineError) *models.PipelineError {
	out := *pe
	out.Stage = st.Ordinal
	return &out
}
