package money

import "testing"

func TestFromFloat(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want Money
	}{
		{
			name: "integral value",
			in:   1500,
			want: 1500,
		},
		{
			name: "half rounds up",
			in:   1500.5,
			want: 1501,
		},
		{
			name: "below half rounds down",
			in:   1500.4,
			want: 1500,
		},
		{
			name: "above half rounds up",
			in:   1500.6,
			want: 1501,
		},
		{
			name: "zero",
			in:   0,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromFloat(tt.in)
			if got != tt.want {
				t.Fatalf("FromFloat(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestClampTo(t *testing.T) {
	if got := FromInt(150).ClampTo(FromInt(100)); got != 100 {
		t.Fatalf("ClampTo = %d, want 100", got)
	}
	if got := FromInt(50).ClampTo(FromInt(100)); got != 50 {
		t.Fatalf("ClampTo = %d, want 50", got)
	}
	if got := FromInt(100).ClampTo(FromInt(100)); got != 100 {
		t.Fatalf("ClampTo = %d, want 100", got)
	}
}

func TestPercentOf(t *testing.T) {
	tests := []struct {
		name    string
		current Money
		target  Money
		want    float64
	}{
		{
			name:    "half",
			current: 50,
			target:  100,
			want:    50,
		},
		{
			name:    "full",
			current: 100,
			target:  100,
			want:    100,
		},
		{
			name:    "above target clamps to 100",
			current: 150,
			target:  100,
			want:    100,
		},
		{
			name:    "zero target",
			current: 50,
			target:  0,
			want:    0,
		},
		{
			name:    "negative target",
			current: 50,
			target:  -100,
			want:    0,
		},
		{
			name:    "negative current clamps to 0",
			current: -50,
			target:  100,
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.current.PercentOf(tt.target)
			if got != tt.want {
				t.Fatalf("PercentOf = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCmp(t *testing.T) {
	if FromInt(1).Cmp(FromInt(2)) != -1 {
		t.Fatalf("Cmp(1, 2) must be -1")
	}
	if FromInt(2).Cmp(FromInt(1)) != 1 {
		t.Fatalf("Cmp(2, 1) must be 1")
	}
	if FromInt(1).Cmp(FromInt(1)) != 0 {
		t.Fatalf("Cmp(1, 1) must be 0")
	}
}
