package forecast

// Tier classifies how much of the irradiance chain must be modelled for a
// given snapshot. Lower tiers carry better data.
type Tier int

const (
	// TierDirect means irradiance is supplied upstream; the clear-sky and
	// cloud models are skipped entirely.
	TierDirect Tier = 1
	// TierCloud means only cloud cover is available; clear-sky GHI is
	// attenuated by the cloud fraction, then decomposed.
	TierCloud Tier = 2
	// TierClearSky means nothing usable is available; the estimate runs on
	// pure clear-sky irradiance.
	TierClearSky Tier = 3
)

func (t Tier) String() string {
	switch t {
	case TierDirect:
		return "direct-irradiance"
	case TierCloud:
		return "cloud-derived"
	case TierClearSky:
		return "clear-sky"
	default:
		return "unknown"
	}
}

// Capabilities records which snapshot fields are populated and the derived
// data-quality tier.
type Capabilities struct {
	HasGHI         bool
	HasDNI         bool
	HasDHI         bool
	HasCloudCover  bool
	HasTemperature bool
	HasWind        bool
	Tier           Tier
}

// DetectCapabilities inspects one snapshot and assigns its tier. Precedence:
// DNI+DHI beats GHI beats cloud cover beats the clear-sky fallback. The tier
// is chosen per snapshot, not per run: near-term steps are commonly richer
// than far-horizon ones.
func DetectCapabilities(s Snapshot) Capabilities {
	c := Capabilities{
		HasGHI:         s.GHI != nil,
		HasDNI:         s.DNI != nil,
		HasDHI:         s.DHI != nil,
		HasCloudCover:  s.CloudCoverPct != nil,
		HasTemperature: s.TemperatureC != nil,
		HasWind:        s.WindSpeedMPS != nil,
	}
	switch {
	case (c.HasDNI && c.HasDHI) || c.HasGHI:
		c.Tier = TierDirect
	case c.HasCloudCover:
		c.Tier = TierCloud
	default:
		c.Tier = TierClearSky
	}
	return c
}
