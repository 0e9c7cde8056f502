package export

import (
	"fmt"
	"math"
)

// FormatTimestamp renders seconds as MM:SS. Minutes are not wrapped into
// hours, so 3725 seconds is "62:05".
func FormatTimestamp(seconds float64) string {
	minutes := int(math.Floor(seconds / 60))
	secs := int(math.Floor(math.Mod(seconds, 60)))
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

// FormatSRTTimestamp renders seconds as HH:MM:SS,mmm
func FormatSRTTimestamp(seconds float64) string {
	hours := int(math.Floor(seconds / 3600))
	minutes := int(math.Floor(math.Mod(seconds, 3600) / 60))
	secs := int(math.Floor(math.Mod(seconds, 60)))
	millis := int(math.Floor(math.Mod(seconds, 1) * 1000))
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// FormatDuration renders a total duration as M:SS
func FormatDuration(seconds float64) string {
	minutes := int(math.Floor(seconds / 60))
	secs := int(math.Floor(math.Mod(seconds, 60)))
	return fmt.Sprintf("%d:%02d", minutes, secs)
}
