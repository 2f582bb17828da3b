package billing

import "strings"

// Per-second list prices in cents. Unlisted engines fall back to the default
// so a new engine can ship before pricing catches up.
var ratePerSecondCents = map[string]int{
	"veo3":          50,
	"veo3/fast":     25,
	"kling-video":   15,
	"minimax-video": 12,
	"sim":           1,
}

const defaultRatePerSecondCents = 20

// EstimateCents prices a render request before submission.
func EstimateCents(engine string, durationSeconds, quantity int) int {
	rate, ok := ratePerSecondCents[strings.ToLower(strings.TrimSpace(engine))]
	if !ok {
		rate = defaultRatePerSecondCents
	}
	if durationSeconds <= 0 {
		durationSeconds = 1
	}
	if quantity <= 0 {
		quantity = 1
	}
	return rate * durationSeconds * quantity
}
