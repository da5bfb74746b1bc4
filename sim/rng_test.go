package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunStreams_SameSeed_SameSequences(t *testing.T) {
	// GIVEN two runs with the same seed
	a := NewRunStreams(42)
	b := NewRunStreams(42)

	// WHEN drawing from each stream
	// THEN the sequences are identical
	for i := 0; i < 3; i++ {
		assert.Equal(t, a.Router().Float64(), b.Router().Float64())
		assert.Equal(t, a.ServerJitter(2).Float64(), b.ServerJitter(2).Float64())
	}
}

func TestRunStreams_ExtraRouterDraws_DoNotShiftArrivalsOrJitter(t *testing.T) {
	// GIVEN one run that has made 10 routing draws and one that has made none
	busy := NewRunStreams(42)
	for i := 0; i < 10; i++ {
		busy.Router().Float64()
	}
	fresh := NewRunStreams(42)

	// THEN arrivals and server jitter are unaffected
	assert.Equal(t, fresh.Arrivals().Float64(), busy.Arrivals().Float64())
	assert.Equal(t, fresh.ServerJitter(0).Float64(), busy.ServerJitter(0).Float64())
}

func TestRunStreams_ArrivalsUseSeedDirectly(t *testing.T) {
	arrivals := NewRunStreams(42).Arrivals()
	direct := rand.New(rand.NewSource(42))

	for i := 0; i < 10; i++ {
		assert.Equal(t, direct.Float64(), arrivals.Float64(), "value %d", i)
	}
}

func TestRunStreams_ServerJitter_IndependentOfPoolSize(t *testing.T) {
	// Server 1's jitter must not depend on how many other servers were created.
	small := NewRunStreams(7)
	small.ServerJitter(0)
	small.ServerJitter(1)

	large := NewRunStreams(7)
	for id := 5; id >= 0; id-- {
		large.ServerJitter(id)
	}

	assert.Equal(t, small.ServerJitter(1).Float64(), large.ServerJitter(1).Float64())
	assert.NotEqual(t, large.ServerJitter(0).Float64(), large.ServerJitter(1).Float64())
}

func TestRunStreams_CachesInstance(t *testing.T) {
	r := NewRunStreams(42)

	assert.Same(t, r.Router(), r.Router())
	assert.Same(t, r.ServerJitter(3), r.ServerJitter(3))
	assert.Len(t, r.streams, 2)
	assert.Equal(t, int64(42), r.Seed())
}

func TestFnv1a64_NoCollisionAcrossStreams(t *testing.T) {
	names := []string{streamArrivals, streamRouter, jitterStream(0), jitterStream(1), jitterStream(100), ""}

	hashes := make(map[int64]string)
	for _, name := range names {
		h := fnv1a64(name)
		if existing, ok := hashes[h]; ok {
			t.Errorf("hash collision: %q and %q both hash to %d", name, existing, h)
		}
		hashes[h] = name
	}
}
