// Package conform runs conformance vectors: transaction fixtures paired with
// a CEL expectation over the verification outcome.
package conform

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/shadowlock/pkg/shadowlock"
	"github.com/Mindburn-Labs/shadowlock/pkg/txfile"
)

//go:embed vectors/*.yaml
var builtin embed.FS

// Vector is one conformance case.
type Vector struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Tx          yaml.Node `yaml:"tx"`
	Expect      string    `yaml:"expect"`
}

// Result is the outcome of one vector.
type Result struct {
	Vector  string          `json:"vector"`
	File    string          `json:"file"`
	Pass    bool            `json:"pass"`
	Allowed bool            `json:"allowed"`
	Code    int8            `json:"code"`
	Reason  string          `json:"reason"`
	Checks  map[string]bool `json:"checks,omitempty"`
	Failure string          `json:"failure,omitempty"` // conform reason code
	Detail  string          `json:"detail,omitempty"`
}

// Report is the top-level result of a conformance run.
type Report struct {
	RunID     string        `json:"run_id"`
	Timestamp time.Time     `json:"timestamp"`
	Pass      bool          `json:"pass"`
	Results   []*Result     `json:"results"`
	Duration  time.Duration `json:"duration"`
}

// Engine evaluates vectors.
type Engine struct {
	verifier *shadowlock.Verifier
	expect   *Expectations
	clock    func() time.Time
	logger   *slog.Logger
}

// NewEngine creates a new conformance engine.
func NewEngine() (*Engine, error) {
	expect, err := NewExpectations()
	if err != nil {
		return nil, err
	}
	return &Engine{
		verifier: shadowlock.New(),
		expect:   expect,
		clock:    time.Now,
		logger:   slog.Default().With("component", "conform"),
	}, nil
}

// WithClock overrides the clock for deterministic testing.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// Run evaluates every *.yaml vector in dir.
func Run(ctx context.Context, dir string) (*Report, error) {
	e, err := NewEngine()
	if err != nil {
		return nil, err
	}
	return e.RunFS(ctx, os.DirFS(dir))
}

// RunBuiltin evaluates the vectors shipped with this build.
func RunBuiltin(ctx context.Context) (*Report, error) {
	e, err := NewEngine()
	if err != nil {
		return nil, err
	}
	sub, err := fs.Sub(builtin, "vectors")
	if err != nil {
		return nil, err
	}
	return e.RunFS(ctx, sub)
}

// RunFS evaluates every *.yaml vector at the root of fsys, in name order.
// A vector that fails to load is a failed result, not a run error.
func (e *Engine) RunFS(ctx context.Context, fsys fs.FS) (*Report, error) {
	files, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, fmt.Errorf("list vectors: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no vectors found")
	}
	sort.Strings(files)

	start := e.clock()
	report := &Report{
		RunID:     uuid.New().String(),
		Timestamp: start.UTC(),
		Pass:      true,
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := e.runFile(fsys, file)
		report.Results = append(report.Results, res)
		if !res.Pass {
			report.Pass = false
			e.logger.WarnContext(ctx, "vector failed",
				"vector", res.Vector,
				"file", res.File,
				"failure", res.Failure,
				"detail", res.Detail,
			)
		}
	}
	report.Duration = e.clock().Sub(start)
	return report, nil
}

func (e *Engine) runFile(fsys fs.FS, file string) *Result {
	res := &Result{File: file, Vector: path.Base(file)}

	data, err := fs.ReadFile(fsys, file)
	if err != nil {
		return res.fail(ReasonVectorInvalid, err)
	}
	var v Vector
	if err := yaml.Unmarshal(data, &v); err != nil {
		return res.fail(ReasonVectorInvalid, err)
	}
	if v.Name != "" {
		res.Vector = v.Name
	}
	return e.RunVector(v, res)
}

// RunVector verifies v's transaction and evaluates its expectation. res may
// be nil.
func (e *Engine) RunVector(v Vector, res *Result) *Result {
	if res == nil {
		res = &Result{Vector: v.Name}
	}
	if v.Expect == "" {
		return res.fail(ReasonVectorInvalid, fmt.Errorf("vector has no expectation"))
	}
	if v.Tx.Kind != yaml.MappingNode {
		return res.fail(ReasonVectorInvalid, fmt.Errorf("vector tx must be a mapping"))
	}
	if _, err := e.expect.Compile(v.Expect); err != nil {
		return res.fail(ReasonExpectationInvalid, err)
	}

	raw, err := yaml.Marshal(&v.Tx)
	if err != nil {
		return res.fail(ReasonVectorInvalid, err)
	}
	doc, err := txfile.Parse(raw)
	if err != nil {
		return res.fail(ReasonVectorInvalid, err)
	}

	report, verr := e.verifier.Evaluate(doc.Accessor())
	res.Allowed = verr == nil
	res.Code = shadowlock.Code(verr)
	res.Reason = shadowlock.Reason(verr)
	if report != nil {
		res.Checks = make(map[string]bool, len(report.Checks))
		for _, c := range report.Checks {
			res.Checks[string(c.Rule)] = c.Pass
		}
	}

	ok, err := e.expect.Evaluate(v.Expect, Outcome{
		Allowed: res.Allowed,
		Code:    res.Code,
		Reason:  res.Reason,
		Checks:  res.Checks,
	})
	if err != nil {
		return res.fail(ReasonExpectationInvalid, err)
	}
	if !ok {
		return res.fail(ReasonExpectationFailed, fmt.Errorf("%s not satisfied by %s", v.Expect, res.Reason))
	}
	res.Pass = true
	return res
}

func (r *Result) fail(reason string, err error) *Result {
	r.Pass = false
	r.Failure = reason
	r.Detail = err.Error()
	return r
}
