package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/noalloc/internal/checker"
	"github.com/roach88/noalloc/internal/diag"
	"github.com/roach88/noalloc/internal/frontend"
	"github.com/roach88/noalloc/internal/ir"
	"github.com/roach88/noalloc/internal/model"
	"github.com/roach88/noalloc/internal/store"
	"github.com/roach88/noalloc/internal/testutil"
)

// Harness executes scenarios against one store.
type Harness struct {
	store  *store.Store
	logger *slog.Logger
}

// New returns a harness recording runs in st. A nil logger discards.
func New(st *store.Store, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Harness{store: st, logger: logger}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, and its
// runs are recorded under IDs derived from the scenario name.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Load and validate the scenario's inputs
// 3. Check the program and record the run
// 4. Evaluate assertions against the stored run
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	st.SetIDGenerator(testutil.NewSequentialIDs(scenario.Name))

	return New(st, nil).Run(context.Background(), scenario)
}

// Run executes a scenario. An error is returned only when the scenario
// could not be executed at all; failed assertions are reported in the
// result.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	inputs, err := scenario.Inputs()
	if err != nil {
		return nil, err
	}

	result := NewResult()
	actx := &AssertionContext{Ctx: ctx, Store: h.store}

	loaded, errs := frontend.LoadSources(ctx, inputs, frontend.Options{
		Mode:   frontend.LoadModeCollectAll,
		Logger: h.logger,
	})
	for _, err := range errs {
		result.LoadErrors = append(result.LoadErrors, err.Error())
		result.LoadCodes = append(result.LoadCodes, frontend.ErrorCode(err))
	}

	if result.Loaded() {
		if err := h.check(ctx, scenario, loaded, result, actx); err != nil {
			return nil, err
		}
	} else if !scenario.ExpectsLoadError() {
		result.AddError("load failed: " + strings.Join(result.LoadErrors, "; "))
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	h.logger.Debug("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"diagnostics", len(result.Diagnostics))
	return result, nil
}

func (h *Harness) check(ctx context.Context, scenario *Scenario, loaded *frontend.Result, result *Result, actx *AssertionContext) error {
	hierarchy := model.New(loaded.Program, scenario.Options.Markers.MarkerNames())
	collector := diag.NewCollector()
	c := checker.New(hierarchy, collector, checker.Options{
		Logger:      h.logger,
		Trace:       scenario.Options.Trace,
		SuppressKey: scenario.Options.SuppressKey,
		Markers:     scenario.Options.Markers.MarkerNames(),
	})
	c.Check()

	hash, err := ir.ProgramHash(loaded.Program)
	if err != nil {
		return fmt.Errorf("failed to hash program: %w", err)
	}
	run, err := h.store.RecordRun(ctx, store.Run{ProgramHash: hash, Sources: loaded.Files}, collector.Diagnostics())
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	stored, err := h.store.ReadDiagnostics(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("failed to read diagnostics: %w", err)
	}

	result.Run = run
	result.Diagnostics = stored
	actx.Hierarchy = hierarchy
	actx.Checker = c
	return nil
}
