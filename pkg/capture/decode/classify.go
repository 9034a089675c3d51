package decode

import (
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/trainloop/capture/pkg/capture"
)

// DefaultHostAllowlist is the set of provider hosts captured when no
// allowlist is configured.
var DefaultHostAllowlist = []string{"api.openai.com", "api.anthropic.com"}

// Classifier decides whether an outbound call is an LLM call. The host
// allowlist can be swapped while requests are in flight.
type Classifier struct {
	hosts atomic.Pointer[map[string]struct{}]
}

// NewClassifier creates a classifier for the given hosts. An empty list
// falls back to DefaultHostAllowlist.
func NewClassifier(hosts []string) *Classifier {
	c := &Classifier{}
	c.SetAllowlist(hosts)
	return c
}

// SetAllowlist atomically replaces the host allowlist.
func (c *Classifier) SetAllowlist(hosts []string) {
	if len(hosts) == 0 {
		hosts = DefaultHostAllowlist
	}
	set := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			set[h] = struct{}{}
		}
	}
	c.hosts.Store(&set)
}

// Allowlist returns a copy of the current allowlist.
func (c *Classifier) Allowlist() []string {
	set := *c.hosts.Load()
	hosts := make([]string, 0, len(set))
	for h := range set {
		hosts = append(hosts, h)
	}
	return hosts
}

// IsLLMCall reports whether u points at an allowlisted provider host.
func (c *Classifier) IsLLMCall(u *url.URL) bool {
	if u == nil {
		return false
	}
	_, ok := (*c.hosts.Load())[strings.ToLower(u.Hostname())]
	return ok
}

// IsLLMURL is IsLLMCall for a raw URL string. Unparseable URLs are not LLM
// calls.
func (c *Classifier) IsLLMURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return c.IsLLMCall(u)
}

// PopTag returns the tag header value and removes every spelling of the
// header from h so it never reaches the provider.
func PopTag(h http.Header) string {
	if h == nil {
		return ""
	}
	var tag string
	for k, v := range h {
		if !strings.EqualFold(k, capture.TagHeader) {
			continue
		}
		if tag == "" && len(v) > 0 {
			tag = v[0]
		}
		delete(h, k)
	}
	return strings.TrimSpace(tag)
}
