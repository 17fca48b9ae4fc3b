package abr

import "testing"

// =============================================================================
// Test Helpers
// =============================================================================

// fakeOverrider records the strategies it was asked to apply.
type fakeOverrider struct {
	accept map[Strategy]bool
	calls  []Strategy
}

func (f *fakeOverrider) SetABRStrategy(s Strategy) bool {
	f.calls = append(f.calls, s)
	return f.accept[s]
}

// noSwitch has no SetABRStrategy method at all.
type noSwitch struct{}

// =============================================================================
// Tests
// =============================================================================

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Strategy
	}{
		{"abrDynamic", Dynamic},
		{"abrBola", Bola},
		{"abrThroughput", Throughput},
		{"", Unsupported},
		{"unsupported", Unsupported},
		{"ABRBOLA", Unsupported},
		{"unknownValue", Unsupported},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Parse(tt.in); got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestApply(t *testing.T) {
	dashLike := map[Strategy]bool{Dynamic: true, Bola: true, Throughput: true}

	tests := []struct {
		name      string
		accept    map[Strategy]bool
		requested string
		want      Strategy
		wantCalls int
	}{
		{"bola on overrider", dashLike, "abrBola", Bola, 1},
		{"throughput on overrider", dashLike, "abrThroughput", Throughput, 1},
		{"dynamic stays on the default", dashLike, "abrDynamic", Unsupported, 0},
		{"unknown value", dashLike, "unknownValue", Unsupported, 0},
		{"empty is no preference", dashLike, "", Unsupported, 0},
		{"rejected override", map[Strategy]bool{}, "abrBola", Unsupported, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &fakeOverrider{accept: tt.accept}
			if got := Apply(o, tt.requested); got != tt.want {
				t.Errorf("Apply(%q) = %v, want %v", tt.requested, got, tt.want)
			}
			if len(o.calls) != tt.wantCalls {
				t.Errorf("SetABRStrategy calls = %d, want %d", len(o.calls), tt.wantCalls)
			}
		})
	}
}

func TestApply_WithoutCapability(t *testing.T) {
	for _, requested := range []string{"abrBola", "abrThroughput", "abrDynamic", "unknownValue", ""} {
		if got := Apply(noSwitch{}, requested); got != Unsupported {
			t.Errorf("Apply(noSwitch, %q) = %v, want %v", requested, got, Unsupported)
		}
	}
	if got := Apply(nil, "abrBola"); got != Unsupported {
		t.Errorf("Apply(nil) = %v, want %v", got, Unsupported)
	}
}

func TestOverridable(t *testing.T) {
	if Dynamic.Overridable() || Unsupported.Overridable() {
		t.Error("Dynamic and Unsupported must not be overridable")
	}
	if !Bola.Overridable() || !Throughput.Overridable() {
		t.Error("Bola and Throughput must be overridable")
	}
}
