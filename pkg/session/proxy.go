package session

import (
	"sync"

	errs "postscraper/pkg/errors"
)

// ErrNoHealthyProxy is returned when every proxy in the pool is quarantined.
var ErrNoHealthyProxy = errs.New(errs.KindTerminalBlock, "all proxies are quarantined")

type proxyEntry struct {
	url         string
	failures    int
	quarantined bool
	uses        int
}

// ProxyStat is a snapshot of one proxy's health.
type ProxyStat struct {
	URL                 string `json:"url"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	Quarantined         bool   `json:"quarantined"`
	Uses                int    `json:"uses"`
}

// ProxyPool hands out proxies round-robin. A proxy that fails threshold
// consecutive times is quarantined for the rest of the run.
type ProxyPool struct {
	mu        sync.Mutex
	entries   []*proxyEntry
	next      int
	threshold int
}

// NewProxyPool creates a pool over urls. A threshold below 1 is treated as 1.
func NewProxyPool(urls []string, threshold int) *ProxyPool {
	if threshold < 1 {
		threshold = 1
	}
	p := &ProxyPool{threshold: threshold}
	seen := make(map[string]bool)
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		p.entries = append(p.entries, &proxyEntry{url: u})
	}
	return p
}

// Len returns the number of proxies in the pool.
func (p *ProxyPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Next returns the next healthy proxy. An empty pool yields "" and no error.
func (p *ProxyPool) Next() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.entries) == 0 {
		return "", nil
	}
	for i := 0; i < len(p.entries); i++ {
		e := p.entries[p.next]
		p.next = (p.next + 1) % len(p.entries)
		if !e.quarantined {
			e.uses++
			return e.url, nil
		}
	}
	return "", ErrNoHealthyProxy
}

// ReportFailure records a failure through url and reports whether the proxy
// is now quarantined.
func (p *ProxyPool) ReportFailure(url string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.find(url)
	if e == nil {
		return false
	}
	e.failures++
	if e.failures >= p.threshold {
		e.quarantined = true
	}
	return e.quarantined
}

// ReportSuccess resets the consecutive failure count of url.
func (p *ProxyPool) ReportSuccess(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e := p.find(url); e != nil && !e.quarantined {
		e.failures = 0
	}
}

// Healthy returns the number of proxies not quarantined.
func (p *ProxyPool) Healthy() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.entries {
		if !e.quarantined {
			n++
		}
	}
	return n
}

// Stats returns a snapshot of every proxy.
func (p *ProxyPool) Stats() []ProxyStat {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ProxyStat, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, ProxyStat{URL: e.url, ConsecutiveFailures: e.failures, Quarantined: e.quarantined, Uses: e.uses})
	}
	return out
}

func (p *ProxyPool) find(url string) *proxyEntry {
	for _, e := range p.entries {
		if e.url == url {
			return e
		}
	}
	return nil
}
