package feature

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/togetheros/rollout/pkg/bucket"
	"github.com/togetheros/rollout/pkg/environment"
)

// RuleKind selects what a Rule matches against.
type RuleKind string

const (
	// RulePercentage matches when the caller's bucket for this flag is below
	// the rule's value (an integer 0-100).
	RulePercentage RuleKind = "percentage"
	// RuleUser matches on the caller's user id.
	RuleUser RuleKind = "user"
	// RuleGroup matches when any of the caller's groups is listed.
	RuleGroup RuleKind = "group"
	// RuleEnvironment matches on the current environment.
	RuleEnvironment RuleKind = "environment"
)

// Rule is an explicit override. Value holds a single value or a
// comma-separated set ("alice,bob").
type Rule struct {
	Kind  RuleKind `json:"kind" yaml:"kind"`
	Value string   `json:"value" yaml:"value"`
}

// Flag is a feature flag definition.
type Flag struct {
	Name              string    `json:"name" yaml:"name"`
	Description       string    `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled           bool      `json:"enabled" yaml:"enabled"`
	RolloutPercentage int       `json:"rolloutPercentage" yaml:"rolloutPercentage"`
	Rules             []Rule    `json:"rules,omitempty" yaml:"rules,omitempty"`
	Tags              []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	CreatedAt         time.Time `json:"createdAt,omitzero" yaml:"createdAt,omitempty"`
	UpdatedAt         time.Time `json:"updatedAt,omitzero" yaml:"updatedAt,omitempty"`
}

// Clone returns a deep copy of f.
func (f *Flag) Clone() *Flag {
	if f == nil {
		return nil
	}
	c := *f
	c.Rules = slices.Clone(f.Rules)
	c.Tags = slices.Clone(f.Tags)
	return &c
}

// normalize clamps the rollout percentage into [0, 100].
func (f *Flag) normalize() {
	f.RolloutPercentage = bucket.ClampPercentage(f.RolloutPercentage)
}

// Document is the persisted form of the whole flag set
// (feature-flags.json).
type Document struct {
	Flags       map[string]*Flag `json:"flags"`
	LastUpdated time.Time        `json:"lastUpdated"`
	Version     int64            `json:"version"`
}

// NewDocument returns an empty document.
func NewDocument() Document {
	return Document{Flags: make(map[string]*Flag)}
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	c := Document{
		Flags:       make(map[string]*Flag, len(d.Flags)),
		LastUpdated: d.LastUpdated,
		Version:     d.Version,
	}
	for name, f := range d.Flags {
		c.Flags[name] = f.Clone()
	}
	return c
}

// Names returns the flag names in sorted order.
func (d Document) Names() []string {
	return slices.Sorted(maps.Keys(d.Flags))
}

// Provider persists the flag document. Implementations must be safe for
// concurrent use.
type Provider interface {
	// Load returns the stored document. A missing store yields an empty
	// document and no error.
	Load(ctx context.Context) (Document, error)

	// Save replaces the stored document.
	Save(ctx context.Context, doc Document) error

	// Close releases any resources held by the provider.
	Close() error
}

// RequestContext identifies the caller a flag is evaluated for.
type RequestContext struct {
	UserID      string
	SessionID   string
	GroupIDs    []string
	Route       string
	Environment environment.Environment
}

// Identifier returns the sticky bucketing identifier for the caller.
func (rc RequestContext) Identifier() string {
	return bucket.Identifier(rc.UserID, rc.SessionID)
}

// Reason explains an evaluation result.
type Reason string

const (
	ReasonDefault    Reason = "default"
	ReasonDisabled   Reason = "disabled"
	ReasonRule       Reason = "rule"
	ReasonPercentage Reason = "percentage"
)

// Result is the outcome of evaluating one flag for one caller.
type Result struct {
	Enabled bool   `json:"enabled"`
	Reason  Reason `json:"reason"`
}
