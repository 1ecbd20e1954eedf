package session

import (
	"math/rand/v2"

	"postscraper/pkg/config"
)

// UserAgentPool picks user agents at random.
type UserAgentPool struct {
	agents []string
	intn   func(n int) int
}

// NewUserAgentPool creates a pool. An empty list falls back to the built-in agents.
func NewUserAgentPool(agents []string) *UserAgentPool {
	if len(agents) == 0 {
		agents = config.DefaultUserAgents
	}
	return &UserAgentPool{agents: append([]string(nil), agents...), intn: rand.IntN}
}

// Random returns one agent from the pool.
func (p *UserAgentPool) Random() string {
	return p.agents[p.intn(len(p.agents))]
}

// Len returns the pool size.
func (p *UserAgentPool) Len() int {
	return len(p.agents)
}
