// Package classify walks the GHM decision tree for one aggregated
// cluster and applies the post-leaf rules: confirmation, childbirth
// consistency, age-based severity promotion, duration-based severity
// demotion and the short-stay mode switch.
package classify

// Severity levels run 0 (none) through 4, mapping onto GHM mode letters
// 'A'..'E' or digits '1'..'4' depending on the root's mode family.

// GetMinimalDurationForSeverity returns the stay duration (nights) below
// which a GHM may not keep the given severity level.
func GetMinimalDurationForSeverity(severity int) int {
	if severity <= 0 {
		return 0
	}
	return 2*severity + 1
}

// LimitSeverityWithDuration caps severity at the highest level the
// duration supports.
func LimitSeverityWithDuration(severity, duration int) int {
	limit := 4
	for limit > 0 && duration < GetMinimalDurationForSeverity(limit) {
		limit--
	}
	if severity > limit {
		return limit
	}
	return severity
}

// severityFromMode maps a GHM mode onto its severity level, or -1 for
// non-severity modes (J, T, Z and the letter modes beyond 'E').
func severityFromMode(mode byte) int {
	switch {
	case mode >= 'A' && mode <= 'E':
		return int(mode - 'A')
	case mode >= '1' && mode <= '4':
		return int(mode - '1')
	default:
		return -1
	}
}

// modeWithSeverity rebuilds a mode byte in the same family (letter or
// digit) as the original, carrying the new severity level.
func modeWithSeverity(mode byte, severity int) byte {
	if severity < 0 {
		severity = 0
	}
	if mode >= '1' && mode <= '4' {
		if severity > 3 {
			severity = 3
		}
		return byte('1' + severity)
	}
	if severity > 4 {
		severity = 4
	}
	return byte('A' + severity)
}
