// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remoting

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedDescriptors memoizes the answers of a slower DescriptorSource,
// misses included.
type CachedDescriptors struct {
	src   DescriptorSource
	cache *lru.Cache[MethodKey, *MethodDescriptor]
}

// NewCachedDescriptors wraps src with an LRU cache holding up to size
// entries.
func NewCachedDescriptors(src DescriptorSource, size int) (*CachedDescriptors, error) {
	cache, err := lru.New[MethodKey, *MethodDescriptor](size)
	if err != nil {
		return nil, err
	}
	return &CachedDescriptors{src: src, cache: cache}, nil
}

func (c *CachedDescriptors) Resolve(key MethodKey) *MethodDescriptor {
	if d, ok := c.cache.Get(key); ok {
		return d
	}
	d := c.src.Resolve(key)
	c.cache.Add(key, d)
	return d
}

// Len returns the number of cached keys.
func (c *CachedDescriptors) Len() int {
	return c.cache.Len()
}
