// Package state implements the coordination stores on an in-process
// lease KV. The KV mirrors the primitive semantics of a Redis-style
// substrate (set-if-absent with expiry, lists, sets, sorted sets,
// hashes) so the stores keep the exact key layout they would have on a
// networked deployment.
package state

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fleetworks/wcs-go/internal/domain/shared"
)

type kvEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (e kvEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// KV is a process-local key-value substrate with leases. Every
// operation is atomic under one lock; expired entries are dropped
// lazily on access and eagerly by PurgeExpired.
type KV struct {
	mu     sync.Mutex
	clock  shared.Clock
	data   map[string]kvEntry
	lists  map[string][]string
	sets   map[string]map[string]struct{}
	zsets  map[string]map[string]float64
	hashes map[string]map[string]string
}

func NewKV(clock shared.Clock) *KV {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &KV{
		clock:  clock,
		data:   make(map[string]kvEntry),
		lists:  make(map[string][]string),
		sets:   make(map[string]map[string]struct{}),
		zsets:  make(map[string]map[string]float64),
		hashes: make(map[string]map[string]string),
	}
}

// Set stores a value. A zero ttl means the entry never expires.
func (kv *KV) Set(key, value string, ttl time.Duration) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data[key] = kvEntry{value: value, expiresAt: kv.deadline(ttl)}
}

// SetNX stores a value only when the key is absent or expired. Returns
// true when the write happened.
func (kv *KV) SetNX(key, value string, ttl time.Duration) bool {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if e, ok := kv.data[key]; ok && !e.expired(kv.clock.Now()) {
		return false
	}
	kv.data[key] = kvEntry{value: value, expiresAt: kv.deadline(ttl)}
	return true
}

// Get returns the live value for a key
func (kv *KV) Get(key string) (string, bool) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	e, ok := kv.data[key]
	if !ok {
		return "", false
	}
	if e.expired(kv.clock.Now()) {
		delete(kv.data, key)
		return "", false
	}
	return e.value, true
}

// Del removes a key. Returns true when a live entry was removed.
func (kv *KV) Del(key string) bool {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	e, ok := kv.data[key]
	if !ok {
		return false
	}
	delete(kv.data, key)
	return !e.expired(kv.clock.Now())
}

// Expire resets the lease on an existing key
func (kv *KV) Expire(key string, ttl time.Duration) bool {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	e, ok := kv.data[key]
	if !ok || e.expired(kv.clock.Now()) {
		return false
	}
	e.expiresAt = kv.deadline(ttl)
	kv.data[key] = e
	return true
}

// Incr atomically increments the integer stored at key and returns the
// new value. A missing or expired key counts from zero. The entry never
// expires.
func (kv *KV) Incr(key string) int64 {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	var n int64
	if e, ok := kv.data[key]; ok && !e.expired(kv.clock.Now()) {
		n, _ = strconv.ParseInt(e.value, 10, 64)
	}
	n++
	kv.data[key] = kvEntry{value: strconv.FormatInt(n, 10)}
	return n
}

// Keys returns the live keys with the given prefix, sorted
func (kv *KV) Keys(prefix string) []string {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	now := kv.clock.Now()
	var out []string
	for k, e := range kv.data {
		if e.expired(now) {
			delete(kv.data, k)
			continue
		}
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// LPush prepends to a list
func (kv *KV) LPush(key string, values ...string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.lists[key] = append(append([]string{}, values...), kv.lists[key]...)
}

// RPush appends to a list
func (kv *KV) RPush(key string, values ...string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.lists[key] = append(kv.lists[key], values...)
}

// LPop removes and returns the head of a list
func (kv *KV) LPop(key string) (string, bool) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	l := kv.lists[key]
	if len(l) == 0 {
		return "", false
	}
	head := l[0]
	if len(l) == 1 {
		delete(kv.lists, key)
	} else {
		kv.lists[key] = l[1:]
	}
	return head, true
}

// LLen returns the length of a list
func (kv *KV) LLen(key string) int {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return len(kv.lists[key])
}

// LRange snapshots a whole list head to tail
func (kv *KV) LRange(key string) []string {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return append([]string{}, kv.lists[key]...)
}

// SAdd adds members to a set
func (kv *KV) SAdd(key string, members ...string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	s, ok := kv.sets[key]
	if !ok {
		s = make(map[string]struct{})
		kv.sets[key] = s
	}
	for _, m := range members {
		s[m] = struct{}{}
	}
}

// SRem removes members from a set, deleting it when emptied
func (kv *KV) SRem(key string, members ...string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	s, ok := kv.sets[key]
	if !ok {
		return
	}
	for _, m := range members {
		delete(s, m)
	}
	if len(s) == 0 {
		delete(kv.sets, key)
	}
}

// SMembers returns the members of a set, sorted
func (kv *KV) SMembers(key string) []string {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	s := kv.sets[key]
	out := make([]string, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// SIsMember reports set membership
func (kv *KV) SIsMember(key, member string) bool {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	_, ok := kv.sets[key][member]
	return ok
}

// ZAdd inserts a member with a score
func (kv *KV) ZAdd(key, member string, score float64) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	z, ok := kv.zsets[key]
	if !ok {
		z = make(map[string]float64)
		kv.zsets[key] = z
	}
	z[member] = score
}

// ZRem removes a member
func (kv *KV) ZRem(key, member string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	z, ok := kv.zsets[key]
	if !ok {
		return
	}
	delete(z, member)
	if len(z) == 0 {
		delete(kv.zsets, key)
	}
}

// ZRangeAsc returns members in ascending score order, score ties broken
// by member, limited to count entries (count <= 0 means all).
func (kv *KV) ZRangeAsc(key string, count int) []string {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	z := kv.zsets[key]
	type pair struct {
		member string
		score  float64
	}
	pairs := make([]pair, 0, len(z))
	for m, s := range z {
		pairs = append(pairs, pair{m, s})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score < pairs[j].score
		}
		return pairs[i].member < pairs[j].member
	})
	if count > 0 && count < len(pairs) {
		pairs = pairs[:count]
	}
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.member
	}
	return out
}

// ZCard returns the cardinality of a sorted set
func (kv *KV) ZCard(key string) int {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return len(kv.zsets[key])
}

// HSet writes one hash field
func (kv *KV) HSet(key, field, value string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	h, ok := kv.hashes[key]
	if !ok {
		h = make(map[string]string)
		kv.hashes[key] = h
	}
	h[field] = value
}

// HGet reads one hash field
func (kv *KV) HGet(key, field string) (string, bool) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.hashes[key][field]
	return v, ok
}

// HGetAll snapshots a hash
func (kv *KV) HGetAll(key string) map[string]string {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	h := kv.hashes[key]
	out := make(map[string]string, len(h))
	for f, v := range h {
		out[f] = v
	}
	return out
}

// HDel removes a hash by key
func (kv *KV) HDel(key string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.hashes, key)
}

// PurgeExpired eagerly drops every expired entry and returns the count
func (kv *KV) PurgeExpired() int {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	now := kv.clock.Now()
	n := 0
	for k, e := range kv.data {
		if e.expired(now) {
			delete(kv.data, k)
			n++
		}
	}
	return n
}

func (kv *KV) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return kv.clock.Now().Add(ttl)
}
