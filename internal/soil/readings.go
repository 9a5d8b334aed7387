package soil

import "fmt"

// canonical readings per scan target. These values are fixed.
var canonicalReadings = map[Status]Reading{
	StatusUnsafe:     {RadiationLevel: 85, MyceliumDensity: 12, SoilStructure: 30, WaterRetention: 20},
	StatusRecovering: {RadiationLevel: 45, MyceliumDensity: 65, SoilStructure: 55, WaterRetention: 60},
	StatusReady:      {RadiationLevel: 5, MyceliumDensity: 92, SoilStructure: 88, WaterRetention: 85},
}

// ReadingFor returns the canonical reading a scan toward target produces.
func ReadingFor(target Status) (Reading, error) {
	r, ok := canonicalReadings[target]
	if !ok {
		return Reading{}, fmt.Errorf("%w: %q", ErrInvalidTarget, string(target))
	}
	return r, nil
}

// Level classifies a metric for display.
type Level string

const (
	LevelSafe    Level = "safe"
	LevelDanger  Level = "danger"
	LevelNeutral Level = "neutral"
)

// Metric is one dashboard card.
type Metric struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
	Level Level   `json:"level"`
}

// Display formats the value with its unit.
func (m Metric) Display() string {
	switch m.Unit {
	case "%":
		return fmt.Sprintf("%.0f%%", m.Value)
	case "/100":
		return fmt.Sprintf("%.0f/100", m.Value)
	case "":
		return fmt.Sprintf("%.0f", m.Value)
	}
	return fmt.Sprintf("%.0f %s", m.Value, m.Unit)
}

// Metrics returns the four metric cards for r.
func Metrics(r Reading) []Metric {
	radiation := LevelSafe
	if r.RadiationLevel > 50 {
		radiation = LevelDanger
	}
	mycelium := LevelNeutral
	if r.MyceliumDensity > 40 {
		mycelium = LevelSafe
	}
	integrity := LevelDanger
	if r.SoilStructure > 70 {
		integrity = LevelSafe
	}
	return []Metric{
		{Label: "Radiation", Value: r.RadiationLevel, Unit: "uSv/h", Level: radiation},
		{Label: "Mycelium", Value: r.MyceliumDensity, Unit: "%", Level: mycelium},
		{Label: "Moisture", Value: r.WaterRetention, Unit: "%", Level: LevelNeutral},
		{Label: "Integrity", Value: r.SoilStructure, Unit: "/100", Level: integrity},
	}
}

// Axis is a radar chart axis scaled to FullMark.
type Axis struct {
	Subject  string  `json:"subject"`
	Value    float64 `json:"value"`
	FullMark float64 `json:"full_mark"`
}

// phAxisValue has no sensor behind it and is always shown as 65.
const phAxisValue = 65

// Axes returns the radar profile for r.
func Axes(r Reading) []Axis {
	return []Axis{
		{Subject: "Toxicity", Value: r.RadiationLevel, FullMark: 100},
		{Subject: "Biology", Value: r.MyceliumDensity, FullMark: 100},
		{Subject: "Nutrients", Value: r.SoilStructure, FullMark: 100},
		{Subject: "Moisture", Value: r.WaterRetention, FullMark: 100},
		{Subject: "PH", Value: phAxisValue, FullMark: 100},
	}
}
