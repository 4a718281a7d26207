package solar

import "math"

// Reference conditions for the thermal and power models.
const (
	noctCellTemp   = 45.0  // nominal operating cell temperature, °C
	noctAmbient    = 20.0  // ambient temperature at NOCT, °C
	noctIrradiance = 800.0 // plane-of-array irradiance at NOCT, W/m²

	stcIrradiance = 1000.0 // standard test condition irradiance, W/m²
	stcCellTemp   = 25.0   // standard test condition cell temperature, °C
)

// Defaults for the PVWatts-style conversion, overridable per installation.
const (
	DefaultTempCoeff          = -0.0038 // power temperature coefficient, 1/°C
	DefaultInverterEfficiency = 0.96
)

// CellTemperature estimates the PV cell temperature from plane-of-array
// irradiance, ambient temperature, and wind speed. The NOCT temperature rise
// is scaled linearly with irradiance and reduced by wind cooling down to a
// 0.7 floor.
func CellTemperature(poa, ambientC, windMPS float64) float64 {
	rise := (noctCellTemp - noctAmbient) * (poa / noctIrradiance)
	windFactor := math.Max(0.7, 1-0.03*(windMPS-1))
	return ambientC + rise*windFactor
}

// DCPower converts plane-of-array irradiance to DC watts for an array with
// the given nameplate rating, derated linearly for cell temperature above
// 25 °C. At 1000 W/m² and 25 °C it returns exactly ratedW.
func DCPower(poa, cellTempC, ratedW, tempCoeff float64) float64 {
	dc := ratedW * (poa / stcIrradiance) * (1 + tempCoeff*(cellTempC-stcCellTemp))
	if dc < 0 {
		dc = 0
	}
	return dc
}

// ACPower applies inverter efficiency and clipping. capW <= 0 disables the
// cap.
func ACPower(dcW, efficiency, capW float64) float64 {
	ac := dcW * efficiency
	if capW > 0 && ac > capW {
		ac = capW
	}
	if ac < 0 {
		ac = 0
	}
	return ac
}
