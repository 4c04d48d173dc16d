// Package tokens estimates prompt sizes for the remote generator so an
// oversized request is reported before it is sent.
package tokens

import "fmt"

// bytesPerToken approximates English text and code.
const bytesPerToken = 4

const (
	// DefaultContextLimit is the input window assumed when none is configured.
	// GitHub Models serves small models with an 8k window.
	DefaultContextLimit = 8192
	// DefaultWarnThreshold is the share of the window that triggers a warning.
	DefaultWarnThreshold = 0.9
)

// Estimate returns the estimated token count of text: one token per four
// bytes, rounded up.
func Estimate(text string) int {
	return (len(text) + bytesPerToken - 1) / bytesPerToken
}

// EstimateAll sums Estimate over texts.
func EstimateAll(texts ...string) int {
	n := 0
	for _, t := range texts {
		n += Estimate(t)
	}
	return n
}

// Check returns a warning when prompt plus the response reserve reaches
// threshold of limit. It returns "" when limit is not positive or the
// request fits.
func Check(prompt, reserve, limit int, threshold float64) string {
	if limit <= 0 || prompt < 0 || reserve < 0 {
		return ""
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultWarnThreshold
	}
	total := prompt + reserve
	if float64(total) < float64(limit)*threshold {
		return ""
	}
	return fmt.Sprintf("estimated request of %d tokens (prompt %d + response %d) is at %.0f%% of the %d token window",
		total, prompt, reserve, float64(total)*100/float64(limit), limit)
}
