// Package workflow runs the report batch end to end: search once, then
// capture, analyze and enter findings for each requested report, moving
// the host forward with a page-turn keystroke in between.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/johnsonhungm/Rad-bull/internal/config"
	"github.com/johnsonhungm/Rad-bull/internal/imaging"
	"github.com/johnsonhungm/Rad-bull/internal/inference"
	"github.com/johnsonhungm/Rad-bull/internal/report"
)

// State is the orchestrator's position in the report cycle.
type State int

const (
	StateAwaitConfig State = iota
	StateSearching
	StateSelected
	StateExtracting
	StateAnalyzing
	StateEntering
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateAwaitConfig:
		return "AwaitConfig"
	case StateSearching:
		return "Searching"
	case StateSelected:
		return "Selected"
	case StateExtracting:
		return "Extracting"
	case StateAnalyzing:
		return "Analyzing"
	case StateEntering:
		return "Entering"
	case StateCompleted:
		return "Completed"
	case StateAborted:
		return "Aborted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Host drives the RIS and PACS viewer. *ris.Controller implements it.
type Host interface {
	SearchAndOpen(ctx context.Context, date time.Time) error
	ExtractImage(ctx context.Context) (image.Image, error)
	EnterReport(ctx context.Context, findings string) error
	AdvanceViewer(ctx context.Context) error
}

// Analyzer turns a captured image into findings. *inference.Client
// implements it.
type Analyzer interface {
	Analyze(ctx context.Context, img image.Image) (inference.Analysis, error)
}

// Archiver keeps a DICOM copy of each capture. *report.Archive implements
// it; a nil Archiver disables archiving.
type Archiver interface {
	Save(img image.Image, taken time.Time, instance int) (string, error)
}

// Options wires a Runner.
type Options struct {
	Host     Host
	Analyzer Analyzer
	Config   config.Config
	Archive  Archiver
	Log      *slog.Logger
	Now      func() time.Time
}

// Result summarizes a finished batch.
type Result struct {
	Requested int
	Completed int
	Succeeded bool
}

// Runner executes report batches sequentially. One capture and one
// findings text exist at a time; the capture file is deleted before each
// report so a clipboard failure can never reuse the previous patient's
// image.
type Runner struct {
	host     Host
	analyzer Analyzer
	cfg      config.Config
	archive  Archiver
	log      *slog.Logger
	now      func() time.Time

	state State
}

// New returns a Runner. A nil logger discards; a nil Now uses time.Now.
func New(opts Options) *Runner {
	log := opts.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		host:     opts.Host,
		analyzer: opts.Analyzer,
		cfg:      opts.Config,
		archive:  opts.Archive,
		log:      log,
		now:      now,
		state:    StateAwaitConfig,
	}
}

// State returns the runner's current state.
func (r *Runner) State() State { return r.state }

func (r *Runner) transition(s State) {
	r.state = s
	r.log.Debug("workflow state", slog.String("state", s.String()))
}

func (r *Runner) separator() {
	r.log.Info(strings.Repeat("=", 60))
}

// Run processes up to reports studies from the given date. The batch
// stops at the first capture or analysis failure; a failed report entry
// is warned about but does not stop the batch, matching how operators
// want a half-typed report handled (fix it by hand, keep going).
func (r *Runner) Run(ctx context.Context, date time.Time, reports int) (Result, error) {
	if reports < 1 {
		reports = 1
	}
	res := Result{Requested: reports}

	r.transition(StateSearching)
	if err := r.host.SearchAndOpen(ctx, date); err != nil {
		r.transition(StateAborted)
		return res, fmt.Errorf("search: %w", err)
	}
	r.transition(StateSelected)

	err := r.processAll(ctx, &res, reports)

	r.separator()
	if err == nil {
		r.transition(StateCompleted)
		res.Succeeded = true
		r.log.Info(fmt.Sprintf("[OK] ALL %d REPORTS COMPLETED SUCCESSFULLY!", res.Completed))
	} else {
		r.transition(StateAborted)
		r.log.Info(fmt.Sprintf("[FAIL] WORKFLOW FINISHED WITH ERRORS (completed %d of %d)", res.Completed, res.Requested))
	}
	r.separator()
	return res, err
}

func (r *Runner) processAll(ctx context.Context, res *Result, reports int) error {
	for n := 1; n <= reports; n++ {
		r.separator()
		r.log.Info(fmt.Sprintf("PROCESSING REPORT %d OF %d", n, reports))
		r.separator()

		if err := r.processOne(ctx, n); err != nil {
			return err
		}
		res.Completed = n
		r.log.Info(fmt.Sprintf("[OK] Report %d completed!", n))

		if n < reports {
			r.log.Info("--- Moving to Next Report ---")
			if err := r.host.AdvanceViewer(ctx); err != nil {
				return fmt.Errorf("advance to report %d: %w", n+1, err)
			}
		}
	}
	return nil
}

func (r *Runner) processOne(ctx context.Context, n int) error {
	r.removeStaleCapture()

	r.transition(StateExtracting)
	img, err := r.host.ExtractImage(ctx)
	if err != nil {
		r.log.Error(fmt.Sprintf("[FAIL] Failed to extract image for report %d", n), slog.Any("error", err))
		return fmt.Errorf("extract image for report %d: %w", n, err)
	}
	if err := imaging.SavePNG(r.cfg.ImagePath(), img); err != nil {
		r.log.Error(fmt.Sprintf("[FAIL] Failed to save capture for report %d", n), slog.Any("error", err))
		return fmt.Errorf("save capture for report %d: %w", n, err)
	}
	r.log.Info("Image saved to: " + r.cfg.ImagePath())
	r.archiveCapture(img, n)

	r.transition(StateAnalyzing)
	analysis, err := r.analyzer.Analyze(ctx, img)
	if err == nil || errors.Is(err, inference.ErrEmptyGeneration) {
		r.persistOutputs(analysis)
	}
	if err != nil {
		r.log.Error(fmt.Sprintf("[FAIL] Failed to analyze image for report %d", n), slog.Any("error", err))
		return fmt.Errorf("analyze report %d: %w", n, err)
	}

	r.transition(StateEntering)
	if err := r.host.EnterReport(ctx, analysis.Findings); err != nil {
		r.log.Warn(fmt.Sprintf("[WARN] Could not enter report %d, type it in by hand: %v", n, err))
	}
	return nil
}

// removeStaleCapture deletes the previous report's capture file so a
// failed copy can never feed another patient's image to the model.
func (r *Runner) removeStaleCapture() {
	err := os.Remove(r.cfg.ImagePath())
	switch {
	case err == nil:
		r.log.Debug("Removed stale capture " + r.cfg.ImagePath())
	case errors.Is(err, fs.ErrNotExist):
	default:
		r.log.Warn("[WARN] Could not remove stale capture: " + err.Error())
	}
}

func (r *Runner) archiveCapture(img image.Image, instance int) {
	if r.archive == nil {
		return
	}
	path, err := r.archive.Save(img, r.now(), instance)
	if err != nil {
		r.log.Warn("[WARN] Could not archive capture: " + err.Error())
		return
	}
	r.log.Debug("Capture archived to " + path)
}

// persistOutputs writes the raw model output to the append-only audit
// file and the cleaned findings to the report file. Both are written even
// when the cleaned findings came out empty, so the audit trail shows what
// the model actually said.
func (r *Runner) persistOutputs(analysis inference.Analysis) {
	if err := report.AppendRaw(r.cfg.RawOutputPath(), analysis.Raw, r.now()); err != nil {
		r.log.Warn("[WARN] Could not append raw output: " + err.Error())
	} else {
		r.log.Info("Raw output saved to: " + r.cfg.RawOutputPath())
	}
	if err := report.WriteFindings(r.cfg.ReportPath(), analysis.Findings); err != nil {
		r.log.Warn("[WARN] Could not write report file: " + err.Error())
	}
}
