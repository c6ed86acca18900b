package proximity

import "testing"

func TestLabel(t *testing.T) {
	tests := []struct {
		distance, radius float64
		want             string
	}{
		{0.1, 5, "Very Close"},
		{2, 5, "Nearby"},
		{3, 5, "Within Area"},
		{4.5, 5, "Far (within range)"},
		{5, 5, ""},
		{1, 0, ""},
	}
	for _, tt := range tests {
		if got := Label(tt.distance, tt.radius); got != tt.want {
			t.Errorf("Label(%v, %v) = %q, want %q", tt.distance, tt.radius, got, tt.want)
		}
	}
}
