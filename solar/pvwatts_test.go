package solar

import (
	"math"
	"testing"
)

func TestCellTemperature(t *testing.T) {
	// At NOCT irradiance with reference wind the rise is the full 25 °C.
	got := CellTemperature(800, 20, 1)
	if math.Abs(got-45) > 1e-9 {
		t.Errorf("CellTemperature(800, 20, 1) = %.2f, want 45", got)
	}

	// Strong wind cools, but no further than the 0.7 floor.
	windy := CellTemperature(800, 20, 20)
	if math.Abs(windy-(20+25*0.7)) > 1e-9 {
		t.Errorf("windy cell temp = %.2f, want %.2f", windy, 20+25*0.7)
	}

	// No irradiance, no rise.
	if got := CellTemperature(0, 5, 3); got != 5 {
		t.Errorf("dark cell temp = %.2f, want ambient 5", got)
	}
}

func TestDCPowerReferenceConditions(t *testing.T) {
	const rated = 5000.0
	got := DCPower(1000, 25, rated, DefaultTempCoeff)
	if math.Abs(got-rated) > 0.01*rated {
		t.Errorf("DC at STC = %.2f, want %.2f within 1%%", got, rated)
	}
}

func TestDCPowerTemperatureDerating(t *testing.T) {
	cool := DCPower(1000, 25, 5000, DefaultTempCoeff)
	hot := DCPower(1000, 60, 5000, DefaultTempCoeff)
	if hot >= cool {
		t.Errorf("hot cell DC %.2f >= cool cell DC %.2f", hot, cool)
	}
	// Absurdly hot cells floor at zero rather than going negative.
	if got := DCPower(1000, 400, 5000, DefaultTempCoeff); got != 0 {
		t.Errorf("extreme derating = %.2f, want 0", got)
	}
}

func TestACPowerClipping(t *testing.T) {
	if got := ACPower(10000, DefaultInverterEfficiency, 5000); got != 5000 {
		t.Errorf("clipped AC = %.2f, want exactly 5000", got)
	}
	if got := ACPower(1000, DefaultInverterEfficiency, 0); math.Abs(got-960) > 1e-9 {
		t.Errorf("uncapped AC = %.2f, want 960", got)
	}
	if got := ACPower(-5, DefaultInverterEfficiency, 0); got != 0 {
		t.Errorf("negative DC input: AC = %.2f, want 0", got)
	}
}
