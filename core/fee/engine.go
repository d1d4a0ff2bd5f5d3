package fee

import (
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-fees/core"
)

// Rounding is the policy used to split a program fee into installments.
type Rounding string

const (
	// RoundNearest rounds every installment half-up to the cent.
	// The schedule total may drift from the program fee by up to one cent per installment.
	RoundNearest Rounding = "nearest"
	// RoundRemainderLast truncates every installment to the cent and adds the remainder
	// to the final installment. The schedule total equals the program fee exactly.
	RoundRemainderLast Rounding = "remainder_last"
)

// UnmatchedPolicy decides what reconciliation does with transactions matching no installment.
type UnmatchedPolicy string

const (
	UnmatchedStrict  UnmatchedPolicy = "strict"  // fail with *UnmatchedTransactionError
	UnmatchedExclude UnmatchedPolicy = "exclude" // leave them out, listed in Reconciliation.Unmatched
)

const DefaultMaxPartialPayments = 2

// Policy is the explicit configuration of the engine.
type Policy struct {
	MaxPartialPayments int
	Rounding           Rounding
	Unmatched          UnmatchedPolicy
}

func DefaultPolicy() Policy {
	return Policy{
		MaxPartialPayments: DefaultMaxPartialPayments,
		Rounding:           RoundNearest,
		Unmatched:          UnmatchedStrict,
	}
}

// Engine generates and reconciles schedules. It holds no state besides its Policy
// and is safe for concurrent use.
type Engine struct {
	policy Policy
}

func NewEngine(policy Policy) *Engine {
	if policy.Rounding == "" {
		policy.Rounding = RoundNearest
	}
	if policy.Unmatched == "" {
		policy.Unmatched = UnmatchedStrict
	}
	if policy.MaxPartialPayments < 0 {
		policy.MaxPartialPayments = 0
	}
	return &Engine{policy: policy}
}

func (e *Engine) Policy() Policy { return e.policy }

// PolicyFromConfig reads the engine Policy off the application config.
func PolicyFromConfig(conf core.FeesConfig) Policy {
	return Policy{
		MaxPartialPayments: conf.MaxPartialPayments,
		Rounding:           Rounding(conf.Rounding),
		Unmatched:          UnmatchedPolicy(conf.Unmatched),
	}
}

// Validate checks that the policy names known rounding and unmatched modes.
func (p Policy) Validate() error {
	switch p.Rounding {
	case "", RoundNearest, RoundRemainderLast:
	default:
		return errors.Errorf("unknown rounding policy %q", p.Rounding)
	}
	switch p.Unmatched {
	case "", UnmatchedStrict, UnmatchedExclude:
	default:
		return errors.Errorf("unknown unmatched transaction policy %q", p.Unmatched)
	}
	if p.MaxPartialPayments < 0 {
		return errors.New("max partial payments cannot be negative")
	}
	return nil
}
