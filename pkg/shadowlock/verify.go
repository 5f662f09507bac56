// Package shadowlock decides whether a transition may unlock a record group
// guarded by a shadow-lock policy.
//
// A run decodes the policy once and evaluates, in order: ownership
// delegation (always), forbid-trade and self-destruct (when flagged). The
// first violated rule ends the run. Accessor errors abort the run and are
// never read as "no match".
package shadowlock

import (
	"fmt"
	"log/slog"

	"github.com/Mindburn-Labs/shadowlock/pkg/matcher"
	"github.com/Mindburn-Labs/shadowlock/pkg/policy"
	"github.com/Mindburn-Labs/shadowlock/pkg/record"
)

// Rule names one authorization rule.
type Rule string

const (
	RuleOwnership    Rule = "ownership"
	RuleForbidTrade  Rule = "forbid_trade"
	RuleSelfDestruct Rule = "self_destruct"
)

// Check is the outcome of one rule. Disabled rules pass without evaluation.
type Check struct {
	Rule    Rule   `json:"rule"`
	Enabled bool   `json:"enabled"`
	Pass    bool   `json:"pass"`
	Detail  string `json:"detail,omitempty"`
}

// Report records what a run evaluated. On a rule violation Checks ends with
// the failing rule. On an accessor error inside a rule it holds only the
// rules completed before it.
type Report struct {
	Descriptor     policy.Descriptor `json:"descriptor"`
	AuthorityGroup []int             `json:"authority_group"`
	Checks         []Check           `json:"checks"`
}

// Allowed reports whether every rule was reached and passed.
func (r *Report) Allowed() bool {
	if r == nil || len(r.Checks) != 3 {
		return false
	}
	for _, c := range r.Checks {
		if !c.Pass {
			return false
		}
	}
	return true
}

// Verifier evaluates shadow-lock policies. It holds no per-run state and
// may be shared.
type Verifier struct {
	logger *slog.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithLogger sets a debug logger for rule decisions.
func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) {
		if l != nil {
			v.logger = l
		}
	}
}

// New creates a Verifier. Without WithLogger it is silent.
func New(opts ...Option) *Verifier {
	v := &Verifier{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify is the single host entry point: nil means the transition is
// authorized, anything else rejects it.
func Verify(acc record.Accessor) error {
	return New().Verify(acc)
}

// Verify decodes the policy from acc and evaluates it.
func (v *Verifier) Verify(acc record.Accessor) error {
	_, err := v.Evaluate(acc)
	return err
}

// VerifyDescriptor evaluates an already decoded policy against the given
// authority group.
func (v *Verifier) VerifyDescriptor(d policy.Descriptor, group []int, acc record.Accessor) error {
	_, err := v.evaluate(d, group, acc)
	return err
}

// Evaluate runs the rules and reports each one. The report is nil only when
// the policy or the authority group cannot be read.
func (v *Verifier) Evaluate(acc record.Accessor) (*Report, error) {
	d, err := policy.Decode(acc.PolicyBytes())
	if err != nil {
		return nil, err
	}
	group, err := acc.AuthorityGroup()
	if err != nil {
		return nil, fmt.Errorf("shadowlock: authority group: %w", err)
	}
	return v.evaluate(d, group, acc)
}

func (v *Verifier) evaluate(d policy.Descriptor, group []int, acc record.Accessor) (*Report, error) {
	report := &Report{Descriptor: d, AuthorityGroup: group}
	r := &run{
		desc:    d,
		group:   group,
		acc:     acc,
		own:     acc.OwnIdentity(),
		matcher: matcher.New(acc),
	}

	steps := []struct {
		rule    Rule
		enabled bool
		eval    func() (string, error)
	}{
		{RuleOwnership, true, r.ownership},
		{RuleForbidTrade, d.Flags.ForbidTrade, r.forbidTrade},
		{RuleSelfDestruct, d.Flags.SelfDestruct, r.selfDestruct},
	}

	for _, step := range steps {
		if !step.enabled {
			report.Checks = append(report.Checks, Check{Rule: step.rule, Pass: true})
			continue
		}
		detail, err := step.eval()
		if err != nil {
			if IsAuthorizationFailure(err) {
				report.Checks = append(report.Checks, Check{Rule: step.rule, Enabled: true, Detail: detail})
			}
			v.logger.Debug("shadowlock rule rejected",
				"rule", step.rule,
				"reason", Reason(err),
				"error", err,
			)
			return report, err
		}
		report.Checks = append(report.Checks, Check{Rule: step.rule, Enabled: true, Pass: true, Detail: detail})
		v.logger.Debug("shadowlock rule passed", "rule", step.rule, "detail", detail)
	}
	return report, nil
}

// run is the state of one verification.
type run struct {
	desc    policy.Descriptor
	group   []int
	acc     record.Accessor
	own     record.Hash
	matcher *matcher.Matcher
}

// ownership requires a delegate record somewhere in the consumed set.
func (r *run) ownership() (string, error) {
	target := r.desc.DelegateTarget()
	n := r.acc.Count(record.Consumed)
	for i := 0; i < n; i++ {
		ok, err := r.isDelegate(i, target)
		if err != nil {
			return "", err
		}
		if ok {
			return fmt.Sprintf("delegate %s %s at consumed position %d", target, r.desc.Reference.Short(), i), nil
		}
	}
	detail := fmt.Sprintf("no consumed record has %s identity %s", target, r.desc.Reference.Short())
	if r.desc.DataHash != nil {
		detail += " with data " + r.desc.DataHash.Short()
	}
	return detail, fmt.Errorf("%w: %s", ErrOwnershipVerificationFailure, detail)
}

func (r *run) isDelegate(pos int, target policy.DelegateTarget) (bool, error) {
	var (
		h   record.Hash
		ok  = true
		err error
	)
	switch target {
	case policy.TargetType:
		h, ok, err = r.acc.TypeIdentity(pos, record.Consumed)
	default:
		h, err = r.acc.LockIdentity(pos, record.Consumed)
	}
	if err != nil {
		return false, fmt.Errorf("shadowlock: %s identity of consumed record %d: %w", target, pos, err)
	}
	if !ok || h != r.desc.Reference {
		return false, nil
	}
	if r.desc.DataHash == nil {
		return true, nil
	}
	content, err := r.acc.ContentHash(pos, record.Consumed)
	if err != nil {
		return false, fmt.Errorf("shadowlock: content hash of consumed record %d: %w", pos, err)
	}
	return content == *r.desc.DataHash, nil
}

// forbidTrade lets a carried-forward record stay with this authority or go
// to the delegate, nowhere else.
func (r *run) forbidTrade() (string, error) {
	carried := 0
	for _, p := range r.group {
		outputs, err := r.matcher.FindCarriedForward(p, record.Consumed, false, false)
		if err != nil {
			return "", err
		}
		for _, q := range outputs {
			lock, err := r.acc.LockIdentity(q, record.Produced)
			if err != nil {
				return "", fmt.Errorf("shadowlock: lock identity of produced record %d: %w", q, err)
			}
			if lock != r.own && lock != r.desc.Reference {
				detail := fmt.Sprintf("consumed record %d carried to produced record %d locked by %s", p, q, lock.Short())
				return detail, fmt.Errorf("%w: %s", ErrForbidTradeVerificationFailure, detail)
			}
			carried++
		}
	}
	return fmt.Sprintf("%d carried-forward records stay with owner or delegate", carried), nil
}

// selfDestruct requires every authority record to vanish.
func (r *run) selfDestruct() (string, error) {
	for _, p := range r.group {
		outputs, err := r.matcher.FindCarriedForward(p, record.Consumed, true, false)
		if err != nil {
			return "", err
		}
		if len(outputs) > 0 {
			detail := fmt.Sprintf("consumed record %d reappears at produced positions %v", p, outputs)
			return detail, fmt.Errorf("%w: %s", ErrSelfDestructionVerificationFailure, detail)
		}
	}
	return fmt.Sprintf("%d authority records destroyed", len(r.group)), nil
}
