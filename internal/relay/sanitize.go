package relay

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// Clean strips markup from every user supplied field before EmailRelay puts
// them into a message. Text that merely looks like a tag ("a<b>c") is lost.
// Entities are decoded back so apostrophes in names stay readable.
func Clean(sub Submission) Submission {
	return Submission{
		Name:         cleanText(sub.Name),
		Phone:        cleanText(sub.Phone),
		Email:        cleanText(sub.Email),
		Service:      strings.TrimSpace(sub.Service),
		ServiceLabel: sub.ServiceLabel,
		Message:      cleanText(sub.Message),
	}
}

func cleanText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strictPolicy().Sanitize(trimmed)))
}

func strictPolicy() *bluemonday.Policy {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return textPolicy
}
