package state_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/wcs-go/internal/adapters/state"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
)

func TestKV_SetGetDel(t *testing.T) {
	kv := state.NewKV(shared.NewMockClock(time.Time{}))

	kv.Set("k", "v", 0)

	v, ok := kv.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	assert.True(t, kv.Del("k"))
	_, ok = kv.Get("k")
	assert.False(t, ok)
	assert.False(t, kv.Del("k"))
}

func TestKV_LeaseExpiry(t *testing.T) {
	// Arrange
	clock := shared.NewMockClock(time.Time{})
	kv := state.NewKV(clock)
	kv.Set("lease", "v", 30*time.Second)

	// Act - just inside the lease
	clock.Advance(29 * time.Second)
	_, ok := kv.Get("lease")
	assert.True(t, ok)

	// Act - past the lease
	clock.Advance(2 * time.Second)
	_, ok = kv.Get("lease")

	// Assert
	assert.False(t, ok)
}

func TestKV_SetNX(t *testing.T) {
	clock := shared.NewMockClock(time.Time{})
	kv := state.NewKV(clock)

	assert.True(t, kv.SetNX("lock", "a", 10*time.Second))
	assert.False(t, kv.SetNX("lock", "b", 10*time.Second))

	v, _ := kv.Get("lock")
	assert.Equal(t, "a", v)

	// An expired entry behaves as absent
	clock.Advance(11 * time.Second)
	assert.True(t, kv.SetNX("lock", "b", 10*time.Second))
	v, _ = kv.Get("lock")
	assert.Equal(t, "b", v)
}

func TestKV_Expire(t *testing.T) {
	clock := shared.NewMockClock(time.Time{})
	kv := state.NewKV(clock)
	kv.Set("k", "v", 5*time.Second)

	// Renewing pushes the deadline out
	clock.Advance(4 * time.Second)
	assert.True(t, kv.Expire("k", 10*time.Second))
	clock.Advance(9 * time.Second)
	_, ok := kv.Get("k")
	assert.True(t, ok)

	// A missing key cannot be renewed
	assert.False(t, kv.Expire("missing", time.Second))
}

func TestKV_Incr(t *testing.T) {
	kv := state.NewKV(shared.NewMockClock(time.Time{}))

	assert.Equal(t, int64(1), kv.Incr("seq"))
	assert.Equal(t, int64(2), kv.Incr("seq"))
	assert.Equal(t, int64(3), kv.Incr("seq"))
}

func TestKV_KeysByPrefix(t *testing.T) {
	clock := shared.NewMockClock(time.Time{})
	kv := state.NewKV(clock)
	kv.Set("node:A:occupied_by", "SH-01", 0)
	kv.Set("node:B:occupied_by", "SH-02", 10*time.Second)
	kv.Set("row:1:3:direction", "LTR", 0)

	clock.Advance(11 * time.Second)

	// Expired entries fall out of the listing
	assert.Equal(t, []string{"node:A:occupied_by"}, kv.Keys("node:"))
}

func TestKV_Lists(t *testing.T) {
	kv := state.NewKV(shared.NewMockClock(time.Time{}))

	kv.RPush("q", "a", "b")
	kv.LPush("q", "front")

	assert.Equal(t, 3, kv.LLen("q"))
	assert.Equal(t, []string{"front", "a", "b"}, kv.LRange("q"))

	head, ok := kv.LPop("q")
	require.True(t, ok)
	assert.Equal(t, "front", head)
	assert.Equal(t, 2, kv.LLen("q"))

	kv.LPop("q")
	kv.LPop("q")
	_, ok = kv.LPop("q")
	assert.False(t, ok)
}

func TestKV_Sets(t *testing.T) {
	kv := state.NewKV(shared.NewMockClock(time.Time{}))

	kv.SAdd("s", "b", "a", "a")

	assert.Equal(t, []string{"a", "b"}, kv.SMembers("s"))
	assert.True(t, kv.SIsMember("s", "a"))

	kv.SRem("s", "a", "b")
	assert.Empty(t, kv.SMembers("s"))
	assert.False(t, kv.SIsMember("s", "a"))
}

func TestKV_SortedSets(t *testing.T) {
	kv := state.NewKV(shared.NewMockClock(time.Time{}))

	kv.ZAdd("z", "late", 30)
	kv.ZAdd("z", "early", 10)
	kv.ZAdd("z", "mid", 20)

	assert.Equal(t, []string{"early", "mid", "late"}, kv.ZRangeAsc("z", 0))
	assert.Equal(t, []string{"early"}, kv.ZRangeAsc("z", 1))
	assert.Equal(t, 3, kv.ZCard("z"))

	kv.ZRem("z", "early")
	assert.Equal(t, []string{"mid", "late"}, kv.ZRangeAsc("z", 0))
}

func TestKV_Hashes(t *testing.T) {
	kv := state.NewKV(shared.NewMockClock(time.Time{}))

	kv.HSet("h", "status", "IDLE")
	kv.HSet("h", "floor", "2")

	v, ok := kv.HGet("h", "status")
	require.True(t, ok)
	assert.Equal(t, "IDLE", v)
	assert.Equal(t, map[string]string{"status": "IDLE", "floor": "2"}, kv.HGetAll("h"))

	kv.HDel("h")
	assert.Empty(t, kv.HGetAll("h"))
}

func TestKV_PurgeExpired(t *testing.T) {
	clock := shared.NewMockClock(time.Time{})
	kv := state.NewKV(clock)
	kv.Set("a", "1", 5*time.Second)
	kv.Set("b", "2", 50*time.Second)
	kv.Set("c", "3", 0)

	clock.Advance(10 * time.Second)

	assert.Equal(t, 1, kv.PurgeExpired())
	_, ok := kv.Get("b")
	assert.True(t, ok)
	_, ok = kv.Get("c")
	assert.True(t, ok)
}
