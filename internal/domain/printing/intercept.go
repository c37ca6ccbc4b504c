package printing

import (
	"strconv"
	"strings"
)

// Path fragments that mark a navigation as a receipt
const (
	billPathFragment = "/bill/"
	kotPathFragment  = "/kot/"
)

// IsReceiptURL reports whether a navigation target should be diverted
// into the print pipeline instead of opening a window.
func IsReceiptURL(rawURL string) bool {
	return strings.Contains(rawURL, billPathFragment) || strings.Contains(rawURL, kotPathFragment)
}

// KindFromURL derives the document kind from a receipt URL
func KindFromURL(rawURL string) (DocumentKind, bool) {
	switch {
	case strings.Contains(rawURL, billPathFragment):
		return DocumentKindBill, true
	case strings.Contains(rawURL, kotPathFragment):
		return DocumentKindKOT, true
	}
	return "", false
}

// SandboxURL appends the query flag that suppresses the page's own print
// UI, plus an optional rendering-width hint in pixels.
func SandboxURL(rawURL string, widthHint int) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	u := rawURL + sep + "print=false"
	if widthHint > 0 {
		u += "&width=" + strconv.Itoa(widthHint)
	}
	return u
}
