package visit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// DefaultJinaURL is the Jina reader endpoint. The target URL is appended to it.
const DefaultJinaURL = "https://r.jina.ai/"

// Jina fetches pages through the Jina reader API, which returns markdown.
// Multiple API keys are used round robin.
type Jina struct {
	base   string
	keys   []string
	next   atomic.Uint64
	client *http.Client
}

// NewJina creates a reader client. keys is the JINA_API_KEYS value, a comma
// separated list. Returns nil when no key is set.
func NewJina(keys string, client *http.Client) *Jina {
	var ks []string
	for _, k := range strings.Split(keys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			ks = append(ks, k)
		}
	}
	if len(ks) == 0 {
		return nil
	}
	if client == nil {
		client = &http.Client{Timeout: 50 * time.Second}
	}
	return &Jina{base: DefaultJinaURL, keys: ks, client: client}
}

func (j *Jina) key() string {
	n := j.next.Add(1) - 1
	return j.keys[n%uint64(len(j.keys))]
}

// Read returns the reader rendering of rawURL.
func (j *Jina) Read(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.base+rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+j.key())

	resp, err := j.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("jina: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHTMLBody))
	if err != nil {
		return "", fmt.Errorf("jina: read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("jina: HTTP %d", resp.StatusCode)
	}
	return string(body), nil
}
