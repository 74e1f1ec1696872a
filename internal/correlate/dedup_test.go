package correlate

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClaimSet(t *testing.T) {
	assert := assert.New(t)

	claims := NewClaimSet()
	assert.True(claims.Claim("https://m.example.com/a"))
	assert.False(claims.Claim("https://m.example.com/a"))
	assert.True(claims.Claim("https://m.example.com/b"))
	assert.Equal(2, claims.Count())
}

func TestClaimSetConcurrent(t *testing.T) {
	assert := assert.New(t)

	claims := NewClaimSet()
	const workers = 64
	var successes int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if claims.Claim("https://m.example.com/contested") {
				atomic.AddInt64(&successes, 1)
			}
		}()
	}
	wg.Wait()

	// Exactly one claimant wins, no matter the interleaving.
	assert.Equal(int64(1), successes)
	assert.Equal(1, claims.Count())
}
