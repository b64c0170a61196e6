package pipeline

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/sin-text/backend/internal/models"
	"github.com/sin-text/backend/internal/progress"
)

// Extractor returns the plain text of a PDF on disk.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// ArtifactWriter converts and persists the assembled document.
type ArtifactWriter interface {
	Persist(ctx context.Context, htmlDoc string, meta models.GeneratedArtifact) (*models.GeneratedArtifact, error)
}

// UploadRemover deletes an upload once its run has finished.
type UploadRemover interface {
	Remove(id string) error
}

// RunnerConfig wires a Runner.
type RunnerConfig struct {
	Extractor    Extractor
	Orchestrator *Orchestrator
	Plan         []Stage
	Artifacts    ArtifactWriter
	Uploads      UploadRemover // nil keeps uploads on disk
	Logger       zerolog.Logger
}

// Runner executes one upload end to end and reports it on a progress sink.
type Runner struct {
	extractor    Extractor
	orchestrator *Orchestrator
	plan         []Stage
	artifacts    ArtifactWriter
	uploads      UploadRemover
	log          zerolog.Logger
}

func NewRunner(cfg RunnerConfig) *Runner {
	return &Runner{
		extractor:    cfg.Extractor,
		orchestrator: cfg.Orchestrator,
		plan:         cfg.Plan,
		artifacts:    cfg.Artifacts,
		uploads:      cfg.Uploads,
		log:          cfg.Logger.With().Str("component", "runner").Logger(),
	}
}

// Process runs extraction, the stage plan and persistence for upload. Exactly
// one terminal event (complete or error) is emitted on sink; the caller owns
// closing it.
//
// The run is detached from ctx cancellation: a client that disconnects does
// not abort an in-flight inference, and failed writes to sink are logged once
// and otherwise ignored.
func (r *Runner) Process(ctx context.Context, upload *models.UploadedFile, sink progress.Sink) (*models.RunResult, error) {
	ctx = context.WithoutCancel(ctx)

	log := r.log
	if upload != nil {
		log = log.With().Str("file", upload.ID).Logger()
	}
	sink = progress.BestEffort(sink, func(err error) {
		log.Warn().Err(err).Msg("progress channel lost, continuing without client")
	})

	result, err := r.process(ctx, upload, sink, log)
	if upload != nil && r.uploads != nil {
		if rmErr := r.uploads.Remove(upload.ID); rmErr != nil {
			log.Warn().Err(rmErr).Msg("failed to remove upload")
		}
	}

	if err != nil {
		pe := models.AsPipelineError(err, models.KindWrite)
		log.Error().
			Err(pe.Err).
			Int("stage", pe.Stage).
			Str("kind", string(pe.Kind)).
			Str("reason", pe.Reason).
			Msg(pe.Message)
		progress.Fail(sink, pe)
		return nil, pe
	}

	progress.Complete(sink, "Analisi completata e pronta per il download", result)
	log.Info().Str("artifact", result.FileName).Str("model", result.ModelUsed).Msg("run completed")
	return result, nil
}

func (r *Runner) process(ctx context.Context, upload *models.UploadedFile, sink progress.Sink, log zerolog.Logger) (*models.RunResult, error) {
	if upload == nil {
		return nil, models.ValidationFailure("no file uploaded", errors.New("missing upload"))
	}

	log.Info().Str("name", upload.OriginalName).Int64("size", upload.Size).Msg("run started")
	progress.Emit(sink, "Inizio estrazione del testo dal PDF")

	text, err := r.extractor.Extract(ctx, upload.Path)
	if err != nil {
		return nil, models.AsPipelineError(err, models.KindExtraction)
	}
	log.Debug().Int("text_length", len(text)).Msg("text extracted")
	progress.Emit(sink, "Estrazione del testo completata")

	doc, err := r.orchestrator.Run(ctx, r.plan, text, sink)
	if err != nil {
		return nil, err
	}

	progress.Emit(sink, "Generazione del file DOCX")
	artifact, err := r.artifacts.Persist(ctx, doc.HTML, models.GeneratedArtifact{
		Model:      doc.Model,
		SourceName: upload.OriginalName,
	})
	if err != nil {
		return nil, models.AsPipelineError(err, models.KindWrite)
	}

	return &models.RunResult{
		FileName:  artifact.FileName,
		ModelUsed: doc.Model,
		Size:      artifact.Size,
	}, nil
}
