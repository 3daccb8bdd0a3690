package tokens

import "strings"

// ModelLimits describes the token envelope of one model: the total context
// window and the slice of it reserved for the response.
type ModelLimits struct {
	ContextWindow int
	MaxOutput     int
}

// EffectiveInputBudget is the context available for the request after
// reserving output space, minus a five percent safety margin for estimator
// drift.
func (l ModelLimits) EffectiveInputBudget() int {
	available := l.ContextWindow - l.MaxOutput
	if available <= 0 {
		return 0
	}

	return available - available/20
}

type LimitsSource string

const (
	SourceOverride        LimitsSource = "override"
	SourcePrefix          LimitsSource = "prefix"
	SourceDefaultFallback LimitsSource = "default"
)

// ResolvedLimits carries the limits together with how they were found, so
// callers can warn when a model fell through to the conservative default.
type ResolvedLimits struct {
	Model  string
	Limits ModelLimits
	Source LimitsSource
}

type prefixEntry struct {
	prefix string
	limits ModelLimits
}

// Ordered longest-prefix-first so "claude-3-5" wins over "claude-3".
var prefixTable = []prefixEntry{
	{"claude-opus-4", ModelLimits{ContextWindow: 200_000, MaxOutput: 64_000}},
	{"claude-sonnet-4", ModelLimits{ContextWindow: 200_000, MaxOutput: 64_000}},
	{"claude-3-5", ModelLimits{ContextWindow: 200_000, MaxOutput: 64_000}},
	{"claude-3", ModelLimits{ContextWindow: 200_000, MaxOutput: 64_000}},
	{"claude", ModelLimits{ContextWindow: 200_000, MaxOutput: 64_000}},
	{"gpt-4o", ModelLimits{ContextWindow: 128_000, MaxOutput: 16_384}},
	{"gpt-4-turbo", ModelLimits{ContextWindow: 128_000, MaxOutput: 4_096}},
	{"gpt-4", ModelLimits{ContextWindow: 8_192, MaxOutput: 4_096}},
	{"gpt-3.5", ModelLimits{ContextWindow: 16_385, MaxOutput: 4_096}},
}

var defaultLimits = ModelLimits{ContextWindow: 8_192, MaxOutput: 4_096}

// Registry resolves model names to limits. Exact-name overrides take
// precedence over the built-in prefix table.
type Registry struct {
	overrides map[string]ModelLimits
}

func NewRegistry() *Registry {
	return &Registry{overrides: make(map[string]ModelLimits)}
}

// Override pins exact limits for a model name, typically from configuration.
func (r *Registry) Override(model string, limits ModelLimits) {
	r.overrides[model] = limits
}

// Resolve finds limits for a model name: exact override, then longest known
// prefix, then a conservative default.
func (r *Registry) Resolve(model string) ResolvedLimits {
	if limits, ok := r.overrides[model]; ok {
		return ResolvedLimits{Model: model, Limits: limits, Source: SourceOverride}
	}

	for _, entry := range prefixTable {
		if strings.HasPrefix(model, entry.prefix) {
			return ResolvedLimits{Model: model, Limits: entry.limits, Source: SourcePrefix}
		}
	}

	return ResolvedLimits{Model: model, Limits: defaultLimits, Source: SourceDefaultFallback}
}
