package evaluation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBucketDeterministic(t *testing.T) {
	first := Bucket("123456789", "user-1")
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Bucket("123456789", "user-1"))
	}
}

func TestBucketRange(t *testing.T) {
	for i := 0; i < 10000; i++ {
		b := Bucket("scope", fmt.Sprintf("user-%d", i))
		assert.GreaterOrEqual(t, b, 0)
		assert.Less(t, b, 10000)
	}
}

func TestBucketScopeIndependence(t *testing.T) {
	// The same user must land in different buckets for at least some
	// scopes, otherwise a user excluded from one rollout would be
	// excluded from all of them.
	same := 0
	for i := 0; i < 1000; i++ {
		a := Bucket(fmt.Sprintf("scope-a-%d", i), "user-1")
		b := Bucket(fmt.Sprintf("scope-b-%d", i), "user-1")
		if a == b {
			same++
		}
	}
	assert.Less(t, same, 10)
}

func TestBucketSeparatorPreventsCollisions(t *testing.T) {
	// "ab" + "c" and "a" + "bc" must hash differently.
	assert.NotEqual(t, Bucket("ab", "c"), Bucket("a", "bc"))
}

func TestInRolloutEdges(t *testing.T) {
	for i := 0; i < 100; i++ {
		user := fmt.Sprintf("user-%d", i)
		assert.False(t, InRollout("scope", user, 0), "0%% must include nobody")
		assert.False(t, InRollout("scope", user, -5))
		assert.True(t, InRollout("scope", user, 100), "100%% must include everybody")
		assert.True(t, InRollout("scope", user, 150))
	}
}

func TestInRolloutMonotone(t *testing.T) {
	// A user inside a p% rollout stays inside every q% rollout, q > p.
	for i := 0; i < 500; i++ {
		user := fmt.Sprintf("user-%d", i)
		for pct := 0; pct < 100; pct++ {
			if InRollout("scope", user, pct) {
				assert.True(t, InRollout("scope", user, pct+1),
					"user %s in %d%% but not %d%%", user, pct, pct+1)
			}
		}
	}
}

func TestInRolloutDistribution(t *testing.T) {
	const users = 20000
	included := 0
	for i := 0; i < users; i++ {
		if InRollout("distribution-scope", fmt.Sprintf("user-%d", i), 50) {
			included++
		}
	}
	// 50% of 20k with a generous tolerance for hash variance.
	assert.InDelta(t, users/2, included, users*0.03)
}
