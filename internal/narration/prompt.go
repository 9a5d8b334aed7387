package narration

import (
	"fmt"
	"strings"

	"soilpulse-sim/internal/soil"
)

var statusContext = map[soil.Status]string{
	soil.StatusUnsafe:     "High radiation, low fungal activity. Do not plant.",
	soil.StatusRecovering: "Active mycelium network detected. Detoxification in progress. Wait.",
	soil.StatusReady:      "Soil structure restored. Radiation negligible. Safe for planting.",
}

// SystemPrompt frames the report for the given status.
func SystemPrompt(status soil.Status) string {
	var b strings.Builder
	b.WriteString(`You are the AI interface for the "SoilPulse Rod", a futuristic agricultural tool in the "Fallout Harvest" timeline.
The world is recovering from radioactive contamination. Fungi are used to detoxify soil.

Your Role: Analyze the sensor data and provide a brief, professional, yet immersive status report to the farmer.

`)
	fmt.Fprintf(&b, "Current Soil Status: %s\n\n", status)
	b.WriteString("Tone: Scientific, cautious, but hopeful (if recovering/ready). Industrial design aesthetic.\n")
	b.WriteString("Length: Maximum 2-3 sentences.\n\n")
	b.WriteString("Context per status:\n")
	for _, st := range soil.Targets {
		fmt.Fprintf(&b, "- %s: %s\n", st, statusContext[st])
	}
	return b.String()
}

// UserPrompt carries the instantaneous sensor values.
func UserPrompt(r soil.Reading) string {
	return fmt.Sprintf(`Sensor Readings:
- Radiation: %.0f uSv/h
- Mycelium Density: %.0f%%
- Soil Structure Integrity: %.0f%%
- Water Retention: %.0f%%

Provide the field analysis report.`, r.RadiationLevel, r.MyceliumDensity, r.SoilStructure, r.WaterRetention)
}
