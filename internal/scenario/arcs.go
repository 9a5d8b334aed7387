package scenario

// BuiltIn returns the predefined field scripts by name.
func BuiltIn() map[string]Scenario {
	return map[string]Scenario{
		"field-sweep": {
			Name:        "Field Sweep",
			Description: "Insert the probe, then walk the plot from contaminated ground to restored soil.",
			Steps: []Step{
				{Action: ActionInsert, Target: "UNSAFE"},
				{Action: ActionAwait},
				{Action: ActionSimulate, Target: "RECOVERING"},
				{Action: ActionAwait},
				{Action: ActionSimulate, Target: "READY"},
				{Action: ActionAwait},
				{Action: ActionReset},
			},
		},
		"hot-zone": {
			Name:        "Hot Zone",
			Description: "A single reading over a fallout crater.",
			Steps: []Step{
				{Action: ActionInsert, Target: "UNSAFE"},
				{Action: ActionAwait},
				{Action: ActionReset},
			},
		},
		"harvest-check": {
			Name:        "Harvest Check",
			Description: "Confirm a restored bed is ready before planting.",
			Steps: []Step{
				{Action: ActionInsert},
				{Action: ActionAwait},
				{Action: ActionRescan, Target: "READY"},
				{Action: ActionAwait},
				{Action: ActionReset},
			},
		},
	}
}

// Lookup returns a built-in scenario by name or loads one from path.
func Lookup(nameOrPath string) (*Scenario, error) {
	if s, ok := BuiltIn()[nameOrPath]; ok {
		return &s, nil
	}
	return Load(nameOrPath)
}
