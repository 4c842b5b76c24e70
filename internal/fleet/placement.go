package fleet

import (
	"math/rand"
	"sync"
)

// GuildSelector picks the guild that hosts the next created channel.
// The candidate list shrinks as guilds fill up, so a selector only ever
// sees guilds still eligible this cycle.
type GuildSelector interface {
	Pick(candidates []string) string
}

// RandomSelector spreads new channels uniformly across eligible guilds
type RandomSelector struct{}

// Pick returns a uniformly random candidate
func (RandomSelector) Pick(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	return candidates[rand.Intn(len(candidates))]
}

// RoundRobinSelector cycles through candidates in order
type RoundRobinSelector struct {
	mu   sync.Mutex
	next int
}

// Pick returns the next candidate in rotation
func (s *RoundRobinSelector) Pick(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := candidates[s.next%len(candidates)]
	s.next++
	return c
}
