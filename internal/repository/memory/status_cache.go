package memory

import (
	"strconv"
	"time"

	"reqgather-bff/internal/agent"

	"github.com/patrickmn/go-cache"
)

// StatusCache holds the last projected interview status per interview id so
// plain GET requests can be answered without a live channel. A staleness
// signal from the status channel invalidates the entry.
type StatusCache struct {
	cache *cache.Cache
}

func NewStatusCache() *StatusCache {
	// Entries expire after an hour regardless; processing jobs never run
	// longer than that.
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &StatusCache{cache: c}
}

func (r *StatusCache) Save(status agent.InterviewStatus) {
	r.cache.Set(key(status.ID), status, cache.DefaultExpiration)
}

func (r *StatusCache) Get(interviewID int64) (agent.InterviewStatus, bool) {
	if x, found := r.cache.Get(key(interviewID)); found {
		return x.(agent.InterviewStatus), true
	}
	return agent.InterviewStatus{}, false
}

func (r *StatusCache) Invalidate(interviewID int64) {
	r.cache.Delete(key(interviewID))
}

func key(interviewID int64) string {
	return strconv.FormatInt(interviewID, 10)
}
