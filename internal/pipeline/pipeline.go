// Package pipeline runs one dashboard generation end to end: dataset
// preflight, prompt composition, the model call, repair and the final write.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/kayz/dashgen/internal/agent"
	"github.com/kayz/dashgen/internal/ai"
	"github.com/kayz/dashgen/internal/artifact"
	"github.com/kayz/dashgen/internal/config"
	"github.com/kayz/dashgen/internal/dataset"
	"github.com/kayz/dashgen/internal/logger"
	"github.com/kayz/dashgen/internal/persist"
	"github.com/kayz/dashgen/internal/promptbuild"
	"github.com/kayz/dashgen/internal/security"
)

// RunSaver receives one record per run, successful or not.
type RunSaver interface {
	SaveRun(r *persist.RunRecord) error
}

// Result describes a successful run.
type Result struct {
	RunID      string
	OutputPath string
	Bytes      int
	Rows       int
	Repaired   bool
	Warnings   []string
	Generator  string
	Duration   time.Duration
}

// Pipeline holds the collaborators of a run. It is built once per process
// and runs stages strictly in sequence.
type Pipeline struct {
	cfg       *config.Config
	gen       agent.Generator
	composer  *promptbuild.Composer
	validator *artifact.Validator
	persister *artifact.Persister
	auditor   *promptbuild.Auditor
	paths     *security.PathChecker
	history   RunSaver
	validate  *validator.Validate
	now       func() time.Time
}

type Option func(*Pipeline)

// WithHistory records every run in s.
func WithHistory(s RunSaver) Option {
	return func(p *Pipeline) { p.history = s }
}

// WithComposer replaces the composer built from the config.
func WithComposer(c *promptbuild.Composer) Option {
	return func(p *Pipeline) { p.composer = c }
}

// WithSyntaxChecker swaps the checker used by the validation stage.
func WithSyntaxChecker(c artifact.SyntaxChecker) Option {
	return func(p *Pipeline) {
		p.validator = artifact.NewValidator(p.cfg.Validation.SyntaxCheck, artifact.WithSyntaxChecker(c))
	}
}

// Build resolves the configured model and initializes its generator. A
// missing key maps to KindCredentialMissing, anything else to
// KindModelInitialization.
func Build(cfg *config.Config, reg *ai.Registry) (agent.Generator, error) {
	sel, err := reg.Resolve(cfg.AI)
	if err != nil {
		logger.Error("Model resolution failed: %v", err)
		return nil, fail(classify(err, KindModelInitialization), err)
	}
	gen, err := agent.New(sel, agent.OptionsFromConfig(cfg.AI))
	if err != nil {
		logger.Error("Generator init failed for %s/%s: %v", sel.ProviderName, sel.ModelCode, err)
		return nil, fail(classify(err, KindModelInitialization), err)
	}
	logger.Info("Using model %s via %s (%s)", sel.ModelCode, sel.ProviderName, sel.ProviderType)
	return gen, nil
}

// New wires a pipeline around gen.
func New(cfg *config.Config, gen agent.Generator, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if gen == nil {
		return nil, fail(KindModelInitialization, errors.New("no generator"))
	}

	paths := security.NewPathChecker(cfg.Security.AllowedPaths)
	p := &Pipeline{
		cfg:       cfg,
		gen:       gen,
		validator: artifact.NewValidator(cfg.Validation.SyntaxCheck),
		persister: artifact.NewPersister(paths, cfg.Output.NoClobber),
		auditor:   promptbuild.NewAuditor(cfg.PromptBuild),
		paths:     paths,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.composer == nil {
		c, err := promptbuild.NewComposer(cfg.PromptBuild)
		if err != nil {
			logger.Error("Prompt template unavailable: %v", err)
			return nil, fail(KindTemplateFormatting, err)
		}
		p.composer = c
	}
	return p, nil
}

// Run executes every stage for req. The first failure aborts the rest and is
// returned as *Error. Nothing is written to the output path unless every
// earlier stage succeeded.
func (p *Pipeline) Run(ctx context.Context, req promptbuild.Request) (res *Result, err error) {
	started := p.now()
	rec := &persist.RunRecord{
		ID:           uuid.NewString(),
		DatasetPath:  req.DatasetPath,
		Requirements: req.Requirements,
		OutputPath:   p.cfg.Output.Path,
		StartedAt:    started,
	}
	rec.Provider, rec.Model, _ = strings.Cut(p.gen.Name(), "/")
	defer func() {
		rec.Duration = p.now().Sub(started)
		p.record(rec, err)
	}()

	logger.Info("Run %s: dataset=%s output=%s", rec.ID, req.DatasetPath, p.cfg.Output.Path)

	// blank requirements are rejected, but the text itself reaches the prompt verbatim
	check := req
	check.Requirements = strings.TrimSpace(req.Requirements)
	if err := p.validate.Struct(check); err != nil {
		logger.Error("Invalid request: %v", err)
		return nil, fail(KindInvalidRequest, err)
	}
	if err := p.paths.Check(req.DatasetPath); err != nil {
		logger.Error("Dataset %s rejected: %v", req.DatasetPath, err)
		return nil, fail(KindInvalidRequest, err)
	}

	table, err := dataset.Preflight(req.DatasetPath)
	if err != nil {
		logger.Error("Failed to load dataset from %s: %v", req.DatasetPath, err)
		return nil, fail(classify(err, KindDatasetParse), err)
	}
	logger.Info("Loaded dataset %s: %d rows, %d columns", req.DatasetPath, table.RowCount(), len(table.Columns))

	prompt, err := p.composer.Compose(req.Requirements, req.DatasetPath)
	if err != nil {
		logger.Error("Failed to format prompt template: %v", err)
		return nil, fail(KindTemplateFormatting, err)
	}
	rec.PromptDigest = promptbuild.Digest(prompt.Text)
	logger.Debug("Prompt composed (%d bytes, digest %s)", len(prompt.Text), rec.PromptDigest[:12])
	logger.Trace("Prompt text:\n%s", prompt.Text)

	if err := p.auditor.Record(rec.ID, req, prompt); err != nil {
		logger.Warn("Prompt audit failed: %v", err)
	}

	raw, err := p.generate(ctx, prompt.Text, table)
	if err != nil {
		logger.Error("Generation via %s failed: %v", p.gen.Name(), err)
		return nil, fail(classify(err, KindGenerationInvocation), err)
	}
	logger.Info("Received %d bytes from %s", len(raw), p.gen.Name())

	art, err := p.validator.ValidateAndRepair(raw)
	if err != nil {
		var se *artifact.ShapeError
		if errors.As(err, &se) {
			logger.Error("Response rejected: %s. Preview: %s", se.Reason, se.Preview)
		} else {
			logger.Error("Response rejected: %v", err)
		}
		return nil, fail(classify(err, KindUnexpectedResponse), err)
	}
	rec.Repaired = art.Repaired
	rec.Warnings = art.Warnings

	written, err := p.persister.Persist(art, p.cfg.Output.Path)
	if err != nil {
		logger.Error("Error saving code to file %s: %v", p.cfg.Output.Path, err)
		return nil, fail(KindPersistence, err)
	}
	rec.OutputBytes = written.Bytes
	logger.Info("Dashboard code saved to %s (%d bytes)", written.Path, written.Bytes)

	return &Result{
		RunID:      rec.ID,
		OutputPath: written.Path,
		Bytes:      written.Bytes,
		Rows:       table.RowCount(),
		Repaired:   art.Repaired,
		Warnings:   art.Warnings,
		Generator:  p.gen.Name(),
		Duration:   p.now().Sub(started),
	}, nil
}

func (p *Pipeline) generate(ctx context.Context, prompt string, table *dataset.Table) (string, error) {
	if d := p.cfg.AI.Timeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	out, err := p.gen.Generate(ctx, prompt, table)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return "", fmt.Errorf("%w: %v", ctxErr, err)
		}
		return "", err
	}
	return out, nil
}

// record stores the outcome. History failures never fail the run.
func (p *Pipeline) record(rec *persist.RunRecord, err error) {
	if err != nil {
		rec.Status = persist.StatusFailed
		rec.ErrorKind = string(KindOf(err))
		rec.ErrorMessage = err.Error()
	} else {
		rec.Status = persist.StatusSucceeded
	}

	fields := []any{
		"run_id", rec.ID,
		"status", rec.Status,
		"provider", rec.Provider,
		"model", rec.Model,
		"duration", rec.Duration,
	}
	if err != nil {
		logger.Errorw("run failed", append(fields, "error_kind", rec.ErrorKind, "error", rec.ErrorMessage)...)
	} else {
		logger.Infow("run finished", append(fields, "repaired", rec.Repaired, "bytes", rec.OutputBytes)...)
	}

	if p.history == nil {
		return
	}
	if serr := p.history.SaveRun(rec); serr != nil {
		logger.Warn("Could not record run %s: %v", rec.ID, serr)
	}
}
