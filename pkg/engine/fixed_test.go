package engine

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func TestMulDown(t *testing.T) {
	tests := []struct {
		name string
		a, b *uint256.Int
		want *uint256.Int
	}{
		{"whole units", w(100), w(10), w(1000)},
		{"rounds down", uint256.NewInt(1), uint256.NewInt(1), new(uint256.Int)},
		{"zero operand", new(uint256.Int), w(10), new(uint256.Int)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mulDown(tt.a, tt.b)
			if err != nil {
				t.Fatalf("mulDown: %v", err)
			}
			if !got.Eq(tt.want) {
				t.Errorf("mulDown(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDivDown(t *testing.T) {
	got, err := divDown(w(1000), w(10))
	if err != nil {
		t.Fatalf("divDown: %v", err)
	}
	if !got.Eq(w(100)) {
		t.Errorf("divDown(1000, 10) = %s, want 100", got)
	}

	// 1/3 truncates toward zero.
	got, err = divDown(w(1), w(3))
	if err != nil {
		t.Fatalf("divDown: %v", err)
	}
	want := uint256.MustFromDecimal("333333333333333333")
	if !got.Eq(want) {
		t.Errorf("divDown(1, 3) = %s, want %s", got, want)
	}
}

func TestDivDownZeroDivisor(t *testing.T) {
	if _, err := divDown(w(1), new(uint256.Int)); !errors.Is(err, ErrArithmetic) {
		t.Errorf("err = %v, want ErrArithmetic", err)
	}
}

func TestMulDownConsistentWithDivDown(t *testing.T) {
	// A fill computed as divDown then mulDown never exceeds the input
	// currency amount.
	cur, px := w(1000), uint256.MustFromDecimal("7000000000000000001")
	sec, err := divDown(cur, px)
	if err != nil {
		t.Fatalf("divDown: %v", err)
	}
	back, err := mulDown(sec, px)
	if err != nil {
		t.Fatalf("mulDown: %v", err)
	}
	if back.Gt(cur) {
		t.Errorf("round trip %s exceeds input %s", back, cur)
	}
}
