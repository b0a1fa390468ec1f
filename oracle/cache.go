// Copyright 2020-2025 Consensys Software Inc.
// Licensed under the Apache License, Version 2.0. See the LICENSE file for details.

package oracle

import (
	"context"

	"github.com/consensys/cantor/state"
	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheKey struct {
	prevState state.Hash
	txID      state.Hash
}

type cachedOracle struct {
	inner Oracle
	lru   *lru.Cache[cacheKey, Prediction]
}

// Cached wraps o with an LRU cache of the given size. Because predictions
// are deterministic for a fixed model version, a cached entry is always as
// good as a fresh call; errors are never cached.
func Cached(o Oracle, size int) (Oracle, error) {
	c, err := lru.New[cacheKey, Prediction](size)
	if err != nil {
		return nil, err
	}
	return &cachedOracle{inner: o, lru: c}, nil
}

func (c *cachedOracle) Predict(ctx context.Context, prevState state.Hash, txID state.Hash) (Prediction, error) {
	key := cacheKey{prevState: prevState, txID: txID}
	if p, ok := c.lru.Get(key); ok {
		return p, nil
	}
	p, err := c.inner.Predict(ctx, prevState, txID)
	if err != nil {
		return Prediction{}, err
	}
	c.lru.Add(key, p)
	return p, nil
}
