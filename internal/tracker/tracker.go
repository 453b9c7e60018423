// Package tracker maintains the bounded set of recently-used album tokens
// and periodically re-refreshes them in the background.
package tracker

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/iconidentify/albumproxy/internal/domain"
)

// Tracker is a bounded, TTL'd set of hot tokens. Once the size cap is hit
// the token with the oldest access goes first; entries also drop out when
// unused for the access TTL. All methods are safe for concurrent use and
// only ever hold the internal lock for map updates, never across I/O.
type Tracker struct {
	tokens *expirable.LRU[domain.Token, time.Time]
}

// New creates a tracker holding at most maxTokens tokens for at most ttl
// since last access.
func New(maxTokens int, ttl time.Duration) *Tracker {
	return &Tracker{
		tokens: expirable.NewLRU[domain.Token, time.Time](maxTokens, nil, ttl),
	}
}

// Touch records an access for token, refreshing its position and TTL.
// Called on every successful album read.
func (t *Tracker) Touch(token domain.Token) {
	t.tokens.Add(token, time.Now())
}

// Tokens returns the tracked tokens, oldest access first.
func (t *Tracker) Tokens() []domain.Token {
	return t.tokens.Keys()
}

// Len returns the number of tracked tokens.
func (t *Tracker) Len() int {
	return t.tokens.Len()
}
