package escalation

import (
	"testing"

	"github.com/docuflow/approval-engine/internal/domain/entity"
)

func ladder(thresholds ...float64) []entity.EscalationLevel {
	levels := make([]entity.EscalationLevel, 0, len(thresholds))
	for i, th := range thresholds {
		levels = append(levels, entity.EscalationLevel{
			Level:              i + 1,
			TimeThresholdHours: th,
		})
	}
	return levels
}

func TestEvaluate(t *testing.T) {
	levels := ladder(4, 8, 24)

	tests := []struct {
		name      string
		elapsed   float64
		wantLevel int // 0 means nil
	}{
		{"below first threshold", 2, 0},
		{"exactly at first threshold", 4, 1},
		{"between first and second", 5, 1},
		{"between second and third", 10, 2},
		{"at the last threshold", 24, 3},
		{"far past the last threshold", 100, 3},
		{"zero elapsed", 0, 0},
		{"negative elapsed", -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(levels, tt.elapsed)
			if tt.wantLevel == 0 {
				if got != nil {
					t.Fatalf("Evaluate(%v) = level %d, want nil", tt.elapsed, got.Level)
				}
				return
			}
			if got == nil {
				t.Fatalf("Evaluate(%v) = nil, want level %d", tt.elapsed, tt.wantLevel)
			}
			if got.Level != tt.wantLevel {
				t.Errorf("Evaluate(%v) = level %d, want %d", tt.elapsed, got.Level, tt.wantLevel)
			}
		})
	}
}

func TestEvaluateMonotonicity(t *testing.T) {
	levels := ladder(1, 3, 9, 27)

	prev := 0
	for elapsed := 0.0; elapsed <= 30; elapsed += 0.5 {
		got := Evaluate(levels, elapsed)
		current := 0
		if got != nil {
			current = got.Level
		}
		if current < prev {
			t.Fatalf("escalation level decreased from %d to %d at elapsed=%v", prev, current, elapsed)
		}
		prev = current
	}
}

func TestEvaluateUnsortedInput(t *testing.T) {
	levels := []entity.EscalationLevel{
		{Level: 3, TimeThresholdHours: 24},
		{Level: 1, TimeThresholdHours: 4},
		{Level: 2, TimeThresholdHours: 8},
	}

	got := Evaluate(levels, 10)
	if got == nil || got.Level != 2 {
		t.Errorf("Evaluate on unsorted ladder: got %v, want level 2", got)
	}
}

func TestEvaluateMalformedLadders(t *testing.T) {
	tests := []struct {
		name   string
		levels []entity.EscalationLevel
	}{
		{"empty ladder", nil},
		{"zero threshold", ladder(0, 8)},
		{"negative threshold", ladder(-4, 8)},
		{"duplicate thresholds", ladder(4, 4, 8)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Malformed ladders fail closed.
			if got := Evaluate(tt.levels, 100); got != nil {
				t.Errorf("Evaluate() = level %d, want nil", got.Level)
			}
		})
	}
}

func TestEvaluateDoesNotMutateInput(t *testing.T) {
	levels := []entity.EscalationLevel{
		{Level: 2, TimeThresholdHours: 8},
		{Level: 1, TimeThresholdHours: 4},
	}

	Evaluate(levels, 10)

	if levels[0].Level != 2 || levels[1].Level != 1 {
		t.Error("Evaluate reordered the caller's slice")
	}
}
