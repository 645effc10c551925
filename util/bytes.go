package util

import "fmt"

// HumanBytes converts a byte count to a human-readable size for user-facing
// messages.
func HumanBytes(n int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	i := 0
	val := float64(n)
	for val >= 1024 && i < len(units)-1 {
		val /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d %s", n, units[i])
	}
	return fmt.Sprintf("%.1f %s", val, units[i])
}

// Mebibytes converts a byte count to MiB for messages that quote the
// transport's attachment limit.
func Mebibytes(n int64) float64 {
	return float64(n) / (1024 * 1024)
}
