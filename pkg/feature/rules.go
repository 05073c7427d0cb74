package feature

import (
	"slices"
	"strconv"
	"strings"

	"github.com/togetheros/rollout/pkg/bucket"
	"github.com/togetheros/rollout/pkg/environment"
)

// evalInput is everything a rule may look at.
type evalInput struct {
	flag string
	rc   RequestContext
	env  environment.Environment
}

type ruleMatcher func(value string, in evalInput) bool

var matchers = map[RuleKind]ruleMatcher{
	RuleUser:        matchUser,
	RuleGroup:       matchGroup,
	RuleEnvironment: matchEnvironment,
	RulePercentage:  matchPercentage,
}

// matches reports whether r applies to in. Unknown kinds never match.
func (r Rule) matches(in evalInput) bool {
	m, ok := matchers[r.Kind]
	if !ok {
		return false
	}
	return m(r.Value, in)
}

// Valid reports whether r has a known kind and a usable value.
func (r Rule) Valid() bool {
	if _, ok := matchers[r.Kind]; !ok {
		return false
	}
	if r.Kind == RulePercentage {
		_, err := strconv.Atoi(strings.TrimSpace(r.Value))
		return err == nil
	}
	return len(splitValues(r.Value)) > 0
}

func matchUser(value string, in evalInput) bool {
	if in.rc.UserID == "" {
		return false
	}
	return slices.Contains(splitValues(value), in.rc.UserID)
}

func matchGroup(value string, in evalInput) bool {
	if len(in.rc.GroupIDs) == 0 {
		return false
	}
	targets := splitValues(value)
	for _, g := range in.rc.GroupIDs {
		if slices.Contains(targets, g) {
			return true
		}
	}
	return false
}

func matchEnvironment(value string, in evalInput) bool {
	if in.env == "" {
		return false
	}
	for _, v := range splitValues(value) {
		if environment.Parse(v) == in.env {
			return true
		}
	}
	return false
}

func matchPercentage(value string, in evalInput) bool {
	p, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return false
	}
	return bucket.Included(in.flag, in.rc.Identifier(), bucket.ClampPercentage(p))
}

func splitValues(value string) []string {
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// evaluate applies the flag semantics to a single flag definition.
// A nil flag evaluates to the default.
func evaluate(f *Flag, in evalInput) Result {
	if f == nil {
		return Result{Enabled: false, Reason: ReasonDefault}
	}
	if !f.Enabled {
		return Result{Enabled: false, Reason: ReasonDisabled}
	}
	for _, r := range f.Rules {
		if r.matches(in) {
			return Result{Enabled: true, Reason: ReasonRule}
		}
	}
	if bucket.Included(in.flag, in.rc.Identifier(), f.RolloutPercentage) {
		return Result{Enabled: true, Reason: ReasonPercentage}
	}
	return Result{Enabled: false, Reason: ReasonDefault}
}
