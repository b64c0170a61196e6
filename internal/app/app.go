// Package app wires the configured components shared by the server and the
// command-line tool.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sin-text/backend/internal/config"
	"github.com/sin-text/backend/internal/docx"
	"github.com/sin-text/backend/internal/inference"
	"github.com/sin-text/backend/internal/pdftext"
	"github.com/sin-text/backend/internal/pipeline"
	"github.com/sin-text/backend/internal/prompt"
	"github.com/sin-text/backend/internal/storage"
)

// Components holds everything a run needs.
type Components struct {
	Config    *config.AppConfig
	Uploads   *storage.UploadStore
	Artifacts *storage.ArtifactStore
	Client    *inference.Client
	Plan      []pipeline.Stage
	Runner    *pipeline.Runner

	log zerolog.Logger
}

// Build constructs the stores, the inference client and the runner from cfg.
func Build(cfg *config.AppConfig, log zerolog.Logger) (*Components, error) {
	templates, err := prompt.LoadTemplates(cfg.Pipeline.PromptsFile)
	if err != nil {
		return nil, fmt.Errorf("loading prompt templates: %w", err)
	}

	plan, err := pipeline.PlanFor(cfg.Pipeline.Mode, templates)
	if err != nil {
		return nil, err
	}

	uploads, err := storage.NewUploadStore(cfg.Storage.UploadsDirectory, log)
	if err != nil {
		return nil, err
	}

	converter := docx.NewConverter(docx.DefaultOptions())
	artifacts, err := storage.NewArtifactStore(cfg.Storage.ArtifactsDirectory, docx.Extension, converter, log)
	if err != nil {
		return nil, err
	}

	client := inference.NewClient(inference.Options{
		BaseURL:  cfg.Inference.BaseURL,
		APIKey:   cfg.Inference.APIKey,
		Model:    cfg.Inference.Model,
		SiteURL:  cfg.Inference.SiteURL,
		SiteName: cfg.Inference.SiteName,
		// the orchestrator enforces StageTimeout; this is the backstop
		Timeout: cfg.StageTimeout() + 30*time.Second,
	})

	orchestrator := pipeline.NewOrchestrator(client, pipeline.OrchestratorOptions{
		StageTimeout: cfg.StageTimeout(),
		Parallel:     cfg.Pipeline.ParallelStages,
	}, log)

	var remover pipeline.UploadRemover
	if !cfg.Storage.KeepUploads {
		remover = uploads
	}

	runner := pipeline.NewRunner(pipeline.RunnerConfig{
		Extractor:    pdftext.NewExtractor(),
		Orchestrator: orchestrator,
		Plan:         plan,
		Artifacts:    artifacts,
		Uploads:      remover,
		Logger:       log,
	})

	return &Components{
		Config:    cfg,
		Uploads:   uploads,
		Artifacts: artifacts,
		Client:    client,
		Plan:      plan,
		Runner:    runner,
		log:       log.With().Str("component", "sweeper").Logger(),
	}, nil
}

// UploadMaxAge is how long an upload may sit on disk before the sweeper
// treats it as orphaned. Kept uploads follow the artifact retention instead.
func (c *Components) UploadMaxAge() time.Duration {
	if c.Config.Storage.KeepUploads {
		return c.Config.ArtifactRetention()
	}
	return c.Config.StageTimeout()*time.Duration(len(c.Plan)+1) + c.Config.CleanupInterval()
}

// Sweep applies the retention policy once.
func (c *Components) Sweep() {
	if maxAge := c.UploadMaxAge(); maxAge > 0 {
		if _, err := c.Uploads.Sweep(maxAge); err != nil {
			c.log.Warn().Err(err).Msg("upload sweep failed")
		}
	}
	if _, err := c.Artifacts.Sweep(c.Config.ArtifactRetention()); err != nil {
		c.log.Warn().Err(err).Msg("artifact sweep failed")
	}
}

// RunSweeper calls Sweep on every cleanup tick until ctx is done.
func (c *Components) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(c.Config.CleanupInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
