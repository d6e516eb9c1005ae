package types

import (
	"fmt"
	"strconv"
	"strings"
)

// bytes per memory unit suffix, lower-cased
var memoryUnits = map[string]float64{
	"":   1 << 20, // bare numbers are megabytes
	"k":  1e3,
	"m":  1e6,
	"g":  1e9,
	"t":  1e12,
	"ki": 1 << 10,
	"mi": 1 << 20,
	"gi": 1 << 30,
	"ti": 1 << 40,
}

// ParseMemoryMB parses a node memory quantity into megabytes (MiB).
// Examples: "65536" -> 65536, "64Gi" -> 65536, "512Mi" -> 512, "1T" -> 953674.
func ParseMemoryMB(memory string) (int64, error) {
	memory = strings.ToLower(strings.TrimSpace(memory))
	if memory == "" {
		return 0, nil
	}

	i := strings.LastIndexAny(memory, "0123456789.") + 1
	value, unit := memory[:i], memory[i:]
	multiplier, ok := memoryUnits[unit]
	if !ok {
		return 0, NewValidationErrorf("unknown memory unit %q", unit)
	}
	num, err := strconv.ParseFloat(value, 64)
	if err != nil || num < 0 {
		return 0, NewValidationErrorf("invalid memory quantity %q", memory)
	}
	return int64(num * multiplier / (1 << 20)), nil
}

// FormatMemoryMB renders megabytes with the largest binary unit that keeps
// at least one whole unit, e.g. 65536 -> "64Gi", 1536 -> "1.5Gi".
func FormatMemoryMB(mb int64) string {
	switch {
	case mb <= 0:
		return "0"
	case mb >= 1<<20:
		return trimFloat(float64(mb)/(1<<20)) + "Ti"
	case mb >= 1<<10:
		return trimFloat(float64(mb)/(1<<10)) + "Gi"
	}
	return fmt.Sprintf("%dMi", mb)
}

func trimFloat(f float64) string {
	return strings.TrimSuffix(strconv.FormatFloat(f, 'f', 1, 64), ".0")
}
