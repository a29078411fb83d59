// Package panel holds the state of a flowsheet's configuration input panel:
// the selected saved config, the editable inputs, the worker-process editor
// and run gating. It talks to the backend through a Service and reports
// changes on an events.EventBus.
package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/watertap-org/flowsheet-int/internal/events"
	"github.com/watertap-org/flowsheet-int/internal/logging"
	"github.com/watertap-org/flowsheet-int/internal/models"
	"github.com/watertap-org/flowsheet-int/internal/organize"
)

// RunDisabledSweepReason is shown when a sweep has nothing to sweep.
const RunDisabledSweepReason = "To run a sweep, at least one variable must be set to sweep"

var (
	ErrNoConfigSelected       = errors.New("no config selected")
	ErrRunDisabled            = errors.New("run is disabled")
	ErrUnknownVariable        = errors.New("unknown input variable")
	ErrInvalidSubprocessCount = errors.New("invalid number of subprocesses")
)

// Service is the backend the panel needs. *api.Client implements it.
type Service interface {
	ListConfigNames(ctx context.Context, flowsheetID string, version int) ([]string, error)
	LoadConfig(ctx context.Context, flowsheetID, configName string) (*models.FlowsheetData, error)
	DeleteConfig(ctx context.Context, flowsheetID, configName string) ([]string, error)
	GetNumberOfSubprocesses(ctx context.Context) (*models.SubprocessCount, error)
	UpdateNumberOfSubprocesses(ctx context.Context, value int) (int, error)
	Solve(ctx context.Context, flowsheetID string, mode models.SolveType, input *models.InputData) (json.RawMessage, error)
}

// Panel is safe for use from multiple goroutines; backend calls are made
// without holding the lock, so two overlapping edits of the same panel
// resolve last-writer-wins.
type Panel struct {
	id  string
	svc Service
	bus *events.EventBus
	log *logging.Logger

	mu sync.Mutex

	data     *models.FlowsheetData
	display  *models.InputData
	baseline *models.InputData

	configName  string
	configNames []string

	solveType     models.SolveType
	inputsChanged bool

	subprocesses      models.SubprocessCount
	subprocessInput   string
	subprocessesValid bool
}

// Option configures a Panel.
type Option func(*Panel)

// WithEventBus publishes panel events on bus.
func WithEventBus(bus *events.EventBus) Option {
	return func(p *Panel) { p.bus = bus }
}

// WithLogger sets the panel's logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Panel) { p.log = l }
}

// WithSolveType sets the initial analysis type.
func WithSolveType(t models.SolveType) Option {
	return func(p *Panel) { p.solveType = t }
}

// WithSubprocesses seeds the worker-process editor with a known setting.
func WithSubprocesses(c models.SubprocessCount) Option {
	return func(p *Panel) {
		p.subprocesses = c
		p.subprocessInput = strconv.Itoa(c.Current)
	}
}

// New creates a panel for flowsheet id showing data. A nil data starts empty.
func New(id string, data *models.FlowsheetData, svc Service, opts ...Option) *Panel {
	if data == nil {
		data = &models.FlowsheetData{}
	}
	if data.InputData == nil {
		data.InputData = &models.InputData{Exports: models.NewExports()}
	}
	p := &Panel{
		id:                id,
		svc:               svc,
		log:               logging.NewNopLogger(),
		data:              data,
		display:           data.InputData.Clone(),
		baseline:          data.InputData.Clone(),
		solveType:         models.SolveSingle,
		subprocessesValid: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FlowsheetID returns the id the panel was created for.
func (p *Panel) FlowsheetID() string { return p.id }

// Data returns a copy of the authoritative flowsheet data.
func (p *Panel) Data() *models.FlowsheetData {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data.Clone()
}

// ConfigName returns the selected saved config, or "" if none.
func (p *Panel) ConfigName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.configName
}

// ConfigNames returns the saved config names from the last refresh or delete.
func (p *Panel) ConfigNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.configNames)
}

// SolveType returns the current analysis type.
func (p *Panel) SolveType() models.SolveType {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.solveType
}

// SetSolveType switches between a single run and a parameter sweep.
func (p *Panel) SetSolveType(t models.SolveType) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.solveType = t
}

// InputsChanged reports whether any input was edited since the last load or reset.
func (p *Panel) InputsChanged() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inputsChanged
}

// Refresh rebuilds the display copy from the input data and reloads the
// list of saved configs for the input version. The current flowsheet name
// becomes the selection when the backend knows it. On error the name list
// and selection are left as they were.
func (p *Panel) Refresh(ctx context.Context) error {
	p.mu.Lock()
	p.display = p.data.InputData.Clone()
	version := p.data.InputData.Version
	name := p.data.Name
	p.mu.Unlock()

	names, err := p.svc.ListConfigNames(ctx, p.id, version)
	if err != nil {
		return p.fail("refresh", fmt.Errorf("unable to get list of config names: %w", err))
	}

	p.mu.Lock()
	p.configNames = names
	if slices.Contains(names, name) {
		p.configName = name
	}
	p.mu.Unlock()

	p.log.Debug().Str("flowsheet", p.id).Int("version", version).Int("configs", len(names)).Msg("config names refreshed")
	return nil
}

// RefreshSubprocesses reads the backend's worker-process setting.
func (p *Panel) RefreshSubprocesses(ctx context.Context) (models.SubprocessCount, error) {
	count, err := p.svc.GetNumberOfSubprocesses(ctx)
	if err != nil {
		return models.SubprocessCount{}, p.fail("subprocesses", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.subprocesses = *count
	p.subprocessInput = strconv.Itoa(count.Current)
	p.subprocessesValid = true
	return *count, nil
}

// SelectConfig loads a saved config and makes it the panel's data. On error
// nothing changes.
func (p *Panel) SelectConfig(ctx context.Context, name string) error {
	loaded, err := p.svc.LoadConfig(ctx, p.id, name)
	if err != nil {
		return p.fail("load", fmt.Errorf("unable to load config: %w", err))
	}

	p.mu.Lock()
	p.data.Name = name
	p.data.InputData = loaded.InputData
	if p.data.InputData == nil {
		p.data.InputData = &models.InputData{Exports: models.NewExports()}
	}
	p.data.OutputData = loaded.OutputData
	p.display = p.data.InputData.Clone()
	p.baseline = p.data.InputData.Clone()
	p.configName = name
	p.inputsChanged = false
	p.mu.Unlock()

	p.log.Info().Str("flowsheet", p.id).Str("config", name).Msg("config loaded")
	p.publish(events.EventConfigLoaded, events.PanelEvent{ConfigName: name})
	return nil
}

// DeleteSelected deletes the selected saved config. On success the selection
// is cleared and the name list replaced by the names the backend returns.
func (p *Panel) DeleteSelected(ctx context.Context) error {
	p.mu.Lock()
	name := p.configName
	p.mu.Unlock()

	if name == "" {
		return ErrNoConfigSelected
	}

	names, err := p.svc.DeleteConfig(ctx, p.id, name)
	if err != nil {
		return p.fail("delete", fmt.Errorf("unable to delete config: %w", err))
	}

	p.mu.Lock()
	p.configName = ""
	p.configNames = names
	p.mu.Unlock()

	p.log.Info().Str("flowsheet", p.id).Str("config", name).Msg("config deleted")
	p.publish(events.EventConfigDeleted, events.PanelEvent{ConfigName: name})
	return nil
}

// Subprocesses returns the last applied worker-process setting.
func (p *Panel) Subprocesses() models.SubprocessCount {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subprocesses
}

// SubprocessInput returns the text last entered in the worker-process editor
// and whether it was accepted.
func (p *Panel) SubprocessInput() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subprocessInput, p.subprocessesValid
}

// SetSubprocesses validates raw as a worker-process count in [1, max] and
// applies it on the backend. Invalid input is rejected without a backend call.
func (p *Panel) SetSubprocesses(ctx context.Context, raw string) error {
	p.mu.Lock()
	p.subprocessInput = raw
	limit := p.subprocesses.Max
	n, ok := parseSubprocessCount(raw, limit)
	p.subprocessesValid = ok
	p.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %q (must be between 1 and %d)", ErrInvalidSubprocessCount, raw, limit)
	}

	applied, err := p.svc.UpdateNumberOfSubprocesses(ctx, n)
	if err != nil {
		return p.fail("subprocesses", fmt.Errorf("unable to update number of subprocesses: %w", err))
	}

	p.mu.Lock()
	p.subprocesses = models.SubprocessCount{Current: applied, Max: limit}
	p.mu.Unlock()

	p.log.Info().Int("requested", n).Int("applied", applied).Msg("number of subprocesses updated")
	p.publish(events.EventSubprocessesUpdated, events.PanelEvent{Subprocesses: applied})
	return nil
}

// parseSubprocessCount accepts any finite number and truncates it toward
// zero, so "2.5" asks for two processes.
func parseSubprocessCount(raw string, limit int) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Trunc(f)
	if f < 1 || f > float64(limit) {
		return 0, false
	}
	return int(f), true
}

// UpdateValue sets an input's value.
func (p *Panel) UpdateValue(key string, value models.Value) error {
	return p.edit(key, func(v *models.Variable) { v.Value = value })
}

// UpdateFixed pins or frees an input. Freeing it in sweep mode marks it as swept.
func (p *Panel) UpdateFixed(key string, fixed bool, mode models.SolveType) error {
	return p.edit(key, func(v *models.Variable) {
		v.Fixed = fixed
		v.IsSweep = mode == models.SolveSweep
	})
}

// UpdateBounds sets an input's lower or upper bound.
func (p *Panel) UpdateBounds(key string, bound models.Bound, value float64) error {
	return p.edit(key, func(v *models.Variable) { v.SetBound(bound, value) })
}

// UpdateSamples sets the number of sweep samples for an input.
func (p *Panel) UpdateSamples(key string, n int) error {
	return p.edit(key, func(v *models.Variable) { v.NumSamples = n })
}

// edit applies fn to the authoritative record and its display copy.
func (p *Panel) edit(key string, fn func(*models.Variable)) error {
	p.mu.Lock()
	v, ok := p.data.InputData.Inputs().Get(key)
	if !ok || v == nil || !v.IsInput {
		p.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownVariable, key)
	}
	fn(v)
	if d, ok := p.display.Inputs().Get(key); ok && d != nil {
		fn(d)
	}
	p.inputsChanged = true
	p.mu.Unlock()

	p.log.Debug().Str("key", key).Msg("input updated")
	p.publish(events.EventInputsChanged, events.PanelEvent{Key: key})
	return nil
}

// RunDisabled reports whether the run button is disabled: never for a single
// run, and for a sweep only while no input is set to sweep.
func (p *Panel) RunDisabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runDisabled()
}

func (p *Panel) runDisabled() bool {
	if p.solveType != models.SolveSweep {
		return false
	}
	disabled := true
	p.data.InputData.Inputs().Range(func(_ string, v *models.Variable) bool {
		if v != nil && v.IsInput && v.IsSweep {
			disabled = false
			return false
		}
		return true
	})
	return disabled
}

// RunDisabledReason is the tooltip for a disabled run button, or "".
func (p *Panel) RunDisabledReason() string {
	if p.RunDisabled() {
		return RunDisabledSweepReason
	}
	return ""
}

// Run posts the input data to the solve or sweep endpoint and stores the
// returned output data.
func (p *Panel) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.runDisabled() {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRunDisabled, RunDisabledSweepReason)
	}
	mode := p.solveType
	input := p.data.InputData.Clone()
	name := p.data.Name
	p.mu.Unlock()

	p.log.Info().Str("flowsheet", p.id).Str("mode", string(mode)).Msg("run requested")
	p.publish(events.EventRunRequested, events.PanelEvent{ConfigName: name, Mode: string(mode)})

	start := time.Now()
	out, err := p.svc.Solve(ctx, p.id, mode, input)
	elapsed := time.Since(start)
	if err != nil {
		p.publish(events.EventRunFinished, events.PanelEvent{ConfigName: name, Mode: string(mode), Duration: elapsed, Err: err})
		return p.fail("run", err)
	}

	p.mu.Lock()
	p.data.OutputData = out
	p.mu.Unlock()

	p.log.Info().Str("flowsheet", p.id).Str("mode", string(mode)).Dur("elapsed", elapsed).Msg("run finished")
	p.publish(events.EventRunFinished, events.PanelEvent{ConfigName: name, Mode: string(mode), Duration: elapsed})
	return nil
}

// Reset discards edits made since construction or the last load.
func (p *Panel) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data.InputData = p.baseline.Clone()
	p.display = p.baseline.Clone()
	p.inputsChanged = false
}

// Layout organizes the display data into two columns. The panel's own
// records keep their unrounded values; the sections carry the rounded ones.
func (p *Panel) Layout() *organize.Result {
	p.mu.Lock()
	res := organize.Organize(p.display.Inputs())
	p.mu.Unlock()

	for _, issue := range res.Issues {
		p.log.Warn().Err(issue).Str("kind", issue.Kind.String()).Msg("organize issue")
	}
	return res
}

func (p *Panel) publish(t events.EventType, ev events.PanelEvent) {
	if p.bus == nil {
		return
	}
	ev.FlowsheetID = p.id
	p.bus.PublishPanel(t, ev)
}

// fail logs err, publishes it and returns it.
func (p *Panel) fail(op string, err error) error {
	p.log.Error().Err(err).Str("flowsheet", p.id).Str("op", op).Msg("panel operation failed")
	if p.bus != nil {
		p.bus.PublishError(p.id, op, err)
	}
	return err
}
