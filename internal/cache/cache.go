package cache

import (
	"time"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Clear()
}

var _ Cache = (*StatsCache)(nil)
var _ Cache = (*NoopCache)(nil)

// StatsCache keeps computed report payloads (dashboard, goal progress)
// so repeated reads skip the aggregation. Entries expire on their own,
// and any activity or goals mutation clears the whole cache since every
// report depends on the full activity collection.
type StatsCache struct {
	cache      *freecache.Cache
	ttlSeconds int
}

func NewStatsCache(sizeBytes int, ttl time.Duration) *StatsCache {
	return &StatsCache{
		cache:      freecache.NewCache(sizeBytes),
		ttlSeconds: int(ttl.Seconds()),
	}
}

func (sc *StatsCache) Get(key string) ([]byte, bool) {
	value, err := sc.cache.Get([]byte(key))
	if err != nil {
		// freecache returns ErrNotFound for both missing and expired
		return nil, false
	}
	return value, true
}

func (sc *StatsCache) Set(key string, value []byte) {
	if err := sc.cache.Set([]byte(key), value, sc.ttlSeconds); err != nil {
		log.Tracef("stats cache, failed to set [%s]: %s", key, err)
	}
}

func (sc *StatsCache) Clear() {
	sc.cache.Clear()
}

// NoopCache is used in tests and when caching is disabled.
type NoopCache struct{}

func (NoopCache) Get(string) ([]byte, bool) { return nil, false }
func (NoopCache) Set(string, []byte)        {}
func (NoopCache) Clear()                    {}
