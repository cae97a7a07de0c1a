package visit

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const probeTimeout = 8 * time.Second

// hasPDFSuffix reports whether the URL path ends in .pdf.
func hasPDFSuffix(rawURL string) bool {
	s := strings.ToLower(strings.TrimSpace(rawURL))
	if u, err := url.Parse(s); err == nil && u.Path != "" {
		return strings.HasSuffix(u.Path, ".pdf")
	}
	return strings.HasSuffix(s, ".pdf")
}

// isPDF classifies rawURL by extension, then by a HEAD probe's content type.
// Probe failures count as "not a PDF".
func (t *Tool) isPDF(ctx context.Context, rawURL string) bool {
	if hasPDFSuffix(rawURL) {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Debug("visit: HEAD probe failed", "url", rawURL, "error", err)
		return false
	}
	resp.Body.Close()
	return strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "pdf")
}
