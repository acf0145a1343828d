package backoff

import (
	"testing"
	"time"
)

func TestCalculatorDelegates(t *testing.T) {
	c := NewCalculator(Exponential{})

	got := c.Delay(2, 100*time.Millisecond, 10*time.Second, 2, 0)
	want := 400 * time.Millisecond
	if got != want {
		t.Errorf("Delay(2) = %v, want %v", got, want)
	}
}

func TestDefaultIsExponential(t *testing.T) {
	c := Default()

	if _, ok := c.strategy.(Exponential); !ok {
		t.Errorf("Default() strategy = %T, want Exponential", c.strategy)
	}

	got := c.Delay(0, 250*time.Millisecond, time.Second, 2, 0)
	if got != 250*time.Millisecond {
		t.Errorf("Delay(0) = %v, want 250ms", got)
	}
}
