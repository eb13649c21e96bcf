package pipeline

import (
	"sync"
	"time"
)

// Stage names one node of the bootstrap graph.
type Stage string

const (
	StageAccessControl Stage = "access-control"
	StageTokens        Stage = "tokens"
	StageReserves      Stage = "reserves"
	StageRates         Stage = "rate-strategies"
	StageOracle        Stage = "oracle-feeds"
	StageRisk          Stage = "risk-config"
)

// Outcome is the per-step result recorded in a Report.
type Outcome string

const (
	OutcomeApplied       Outcome = "applied"
	OutcomeAlreadyExists Outcome = "already-exists"
	OutcomeFailed        Outcome = "failed"
	// OutcomeSkipped steps never ran because something before them failed.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeMissing is reported by read-only checks.
	OutcomeMissing Outcome = "missing"
)

type StepResult struct {
	Stage   Stage     `json:"stage"`
	Symbol  string    `json:"symbol,omitempty"`
	Step    string    `json:"step"`
	Outcome Outcome   `json:"outcome"`
	Digest  string    `json:"digest,omitempty"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`

	err error
}

// Err returns the failure behind a failed step.
func (r StepResult) Err() error { return r.err }

func result(stage Stage, symbol, step string, outcome Outcome, digest string, err error) StepResult {
	r := StepResult{
		Stage:   stage,
		Symbol:  symbol,
		Step:    step,
		Outcome: outcome,
		Digest:  digest,
		At:      time.Now().UTC(),
		err:     err,
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Report collects step results as a run progresses. It is safe to read
// while the run is still going.
type Report struct {
	mu sync.RWMutex

	runID      string
	startedAt  time.Time
	finishedAt time.Time
	stages     map[Stage]Outcome
	steps      []StepResult
}

func newReport(runID string) *Report {
	return &Report{
		runID:     runID,
		startedAt: time.Now().UTC(),
		stages:    make(map[Stage]Outcome),
	}
}

func (r *Report) add(results ...StepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, results...)
}

func (r *Report) setStage(s Stage, o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[s] = o
}

func (r *Report) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishedAt = time.Now().UTC()
}

func (r *Report) RunID() string { return r.runID }

func (r *Report) Steps() []StepResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]StepResult(nil), r.steps...)
}

// Failed returns every failed step.
func (r *Report) Failed() []StepResult {
	return r.Filter(func(s StepResult) bool { return s.Outcome == OutcomeFailed })
}

func (r *Report) Filter(keep func(StepResult) bool) []StepResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []StepResult
	for _, s := range r.steps {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// Count returns the number of steps of stage with the given outcome.
func (r *Report) Count(stage Stage, outcome Outcome) int {
	return len(r.Filter(func(s StepResult) bool { return s.Stage == stage && s.Outcome == outcome }))
}

func (r *Report) StageOutcome(s Stage) (Outcome, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.stages[s]
	return o, ok
}

// Snapshot is a point-in-time copy of a Report, suitable for JSON.
type Snapshot struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	Stages     map[Stage]Outcome `json:"stages"`
	Steps      []StepResult      `json:"steps"`
}

func (r *Report) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Snapshot{
		RunID:     r.runID,
		StartedAt: r.startedAt,
		Stages:    make(map[Stage]Outcome, len(r.stages)),
		Steps:     append([]StepResult(nil), r.steps...),
	}
	for k, v := range r.stages {
		s.Stages[k] = v
	}
	if !r.finishedAt.IsZero() {
		f := r.finishedAt
		s.FinishedAt = &f
	}
	return s
}
