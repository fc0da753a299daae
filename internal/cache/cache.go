// Package cache memoises regression results per dataset and model.
//
// An entry is only served when the fingerprint of the current sample set
// matches the one it was computed from, so a stale entry can cost a refit but
// never return a wrong answer.
package cache

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/plotfit/plotfit/internal/analytics"
	"github.com/plotfit/plotfit/internal/analytics/regression"
)

type entry struct {
	fingerprint uint64
	result      *regression.Result
}

// ResultCache is a bounded LRU of fitted results. A nil *ResultCache is a
// valid, always-missing cache. Cached results are shared and must not be
// modified by callers.
type ResultCache struct {
	lru *lru.Cache[string, entry]
}

// New creates a cache holding up to size results; size <= 0 disables caching
// and returns nil
func New(size int) (*ResultCache, error) {
	if size <= 0 {
		return nil, nil
	}
	c, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &ResultCache{lru: c}, nil
}

func key(dataset string, model regression.Model) string {
	return dataset + "\x00" + model.String()
}

// Get returns the cached result if it was computed from samples with the
// given fingerprint
func (c *ResultCache) Get(dataset string, model regression.Model, fingerprint uint64) (*regression.Result, bool) {
	if c == nil {
		return nil, false
	}
	e, ok := c.lru.Get(key(dataset, model))
	if !ok || e.fingerprint != fingerprint {
		return nil, false
	}
	return e.result, true
}

// Put stores result for the dataset and model
func (c *ResultCache) Put(dataset string, model regression.Model, fingerprint uint64, result *regression.Result) {
	if c == nil || result == nil {
		return
	}
	c.lru.Add(key(dataset, model), entry{fingerprint: fingerprint, result: result})
}

// InvalidateDataset drops every model's entry for the dataset
func (c *ResultCache) InvalidateDataset(dataset string) {
	if c == nil {
		return
	}
	for _, m := range []regression.Model{regression.Linear, regression.PowerLaw} {
		c.lru.Remove(key(dataset, m))
	}
}

// Purge empties the cache
func (c *ResultCache) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

// Len returns the number of cached results
func (c *ResultCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// Fingerprint hashes a sample set independently of sample order. NaN
// payloads and signed zeros hash by their bit patterns.
func Fingerprint(samples []analytics.Sample) uint64 {
	canonical := analytics.SampleSet(samples).Canonical()

	d := xxhash.New()
	var buf [16]byte
	for _, s := range canonical {
		binary.LittleEndian.PutUint64(buf[:8], math.Float64bits(s.X))
		binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(s.Y))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}
