package constants

var (
	// операции производства — сырье, филамент
	ConsumeStages = map[string][]string{
		"PRINT":   {"production", "any"},
		"EXTRUDE": {"production", "any"},
		"MOLD":    {"production", "any"},
		"CUT":     {"production", "any"},
		"MACHINE": {"production", "any"},

		// сборка — фурнитура и полуфабрикаты
		"ASSEMBLE": {"assembly", "production", "any"},
		"BUILD":    {"assembly", "production", "any"},
		"WELD":     {"assembly", "production", "any"},

		"CLEAN": {"any"},
		"SAND":  {"any"},
		"PAINT": {"finishing", "any"},
		"COAT":  {"finishing", "any"},

		"QC":      {"any"},
		"INSPECT": {"any"},
		"TEST":    {"any"},

		// упаковка и отгрузка
		"PACK":  {"shipping", "any"},
		"SHIP":  {"shipping", "any"},
		"LABEL": {"shipping", "any"},
	}

	DefaultConsumeStages = []string{"production", "any"}
)
