package environment

import (
	"context"
	"strings"
)

// Environment names the deployment environment a process serves.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Parse normalizes common spellings ("prod", "Stage", " dev ") to the
// canonical constants. Unknown values are lower-cased and returned as-is so
// custom environments ("preview", "qa") still match flag rules verbatim.
func Parse(s string) Environment {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "prod", string(Production):
		return Production
	case "stage", string(Staging):
		return Staging
	case "dev", "local", string(Development):
		return Development
	default:
		return Environment(v)
	}
}

// String implements fmt.Stringer.
func (e Environment) String() string { return string(e) }

type contextKey struct{}

// WithContext returns a copy of ctx carrying env.
func WithContext(ctx context.Context, env Environment) context.Context {
	return context.WithValue(ctx, contextKey{}, env)
}

// FromContext returns the environment stored in ctx, or "" if none.
func FromContext(ctx context.Context) Environment {
	if ctx == nil {
		return ""
	}
	env, _ := ctx.Value(contextKey{}).(Environment)
	return env
}

// IsProduction reports whether ctx carries the production environment.
func IsProduction(ctx context.Context) bool {
	return FromContext(ctx) == Production
}
