package device

import "strings"

// NormalizeDevEUI strips every non-hex character and uppercases the rest,
// so "00-aa:bb cc" and "00AABBCC" identify the same device.
func NormalizeDevEUI(devEUI string) string {
	var b strings.Builder
	b.Grow(len(devEUI))
	for _, r := range devEUI {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'F':
			b.WriteRune(r)
		case r >= 'a' && r <= 'f':
			b.WriteRune(r - 'a' + 'A')
		}
	}
	return b.String()
}
