package tokens

import "testing"

func TestRegistry_Resolve(t *testing.T) {
	registry := NewRegistry()

	tests := []struct {
		model      string
		wantWindow int
		wantOutput int
		wantSource LimitsSource
	}{
		{"claude-3-5-sonnet-20241022", 200_000, 64_000, SourcePrefix},
		{"claude-opus-4-20250514", 200_000, 64_000, SourcePrefix},
		{"gpt-4o-mini", 128_000, 16_384, SourcePrefix},
		{"gpt-4-turbo-preview", 128_000, 4_096, SourcePrefix},
		{"gpt-4-0613", 8_192, 4_096, SourcePrefix},
		{"gpt-3.5-turbo", 16_385, 4_096, SourcePrefix},
		{"llama-3.1-8b", 8_192, 4_096, SourceDefaultFallback},
	}

	for _, tt := range tests {
		resolved := registry.Resolve(tt.model)
		if resolved.Limits.ContextWindow != tt.wantWindow {
			t.Errorf("%s: window got %d, want %d", tt.model, resolved.Limits.ContextWindow, tt.wantWindow)
		}
		if resolved.Limits.MaxOutput != tt.wantOutput {
			t.Errorf("%s: max output got %d, want %d", tt.model, resolved.Limits.MaxOutput, tt.wantOutput)
		}
		if resolved.Source != tt.wantSource {
			t.Errorf("%s: source got %s, want %s", tt.model, resolved.Source, tt.wantSource)
		}
	}
}

func TestRegistry_OverrideWins(t *testing.T) {
	registry := NewRegistry()
	registry.Override("gpt-4o-mini", ModelLimits{ContextWindow: 32_000, MaxOutput: 8_000})

	resolved := registry.Resolve("gpt-4o-mini")
	if resolved.Source != SourceOverride {
		t.Fatalf("source got %s, want %s", resolved.Source, SourceOverride)
	}
	if resolved.Limits.ContextWindow != 32_000 {
		t.Errorf("window got %d, want 32000", resolved.Limits.ContextWindow)
	}
}

func TestEffectiveInputBudget(t *testing.T) {
	limits := ModelLimits{ContextWindow: 8_192, MaxOutput: 4_096}

	available := 8_192 - 4_096
	want := available - available/20
	if got := limits.EffectiveInputBudget(); got != want {
		t.Errorf("got %d, want %d", got, want)
	}

	degenerate := ModelLimits{ContextWindow: 1_000, MaxOutput: 2_000}
	if got := degenerate.EffectiveInputBudget(); got != 0 {
		t.Errorf("degenerate limits: got %d, want 0", got)
	}
}
