// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stage

import (
	"encoding/json"
	"math/rand"
	"time"

	"github.com/bureau-foundation/geotable/lib/feature"
)

// limitStage retains up to n records: the first n (head), the last n
// (tail), or a uniform sample without replacement. A table with n or
// fewer records passes through unchanged.
type limitStage struct {
	n      int
	method string
	seed   *int64
}

type limitConfig struct {
	N           *int   `json:"n"`
	Method      string `json:"method"`
	RandomState *int64 `json:"random_state"`
}

func newLimit(config json.RawMessage) (Stage, error) {
	var options limitConfig
	if err := decodeConfig(config, &options); err != nil {
		return nil, err
	}

	n := 10
	if options.N != nil {
		n = *options.N
	}
	if n < 0 {
		return nil, validationError("n", "n must not be negative, got %d", n)
	}

	method := options.Method
	if method == "" {
		method = "head"
	}
	switch method {
	case "head", "tail", "sample":
	default:
		return nil, validationError("method", "unknown method %q (supported: head, tail, sample)", method)
	}
	if options.RandomState != nil && method != "sample" {
		return nil, validationError("random_state", "random_state only applies to the sample method")
	}

	return &limitStage{n: n, method: method, seed: options.RandomState}, nil
}

func (l *limitStage) Type() string { return "limit" }

func (l *limitStage) Process(table *feature.Table) (*feature.Table, error) {
	total := table.NumRecords()
	keep := l.n
	if keep >= total {
		keep = total
	}

	indices := make([]int, keep)
	switch l.method {
	case "head":
		for i := 0; i < keep; i++ {
			indices[i] = i
		}
	case "tail":
		for i := 0; i < keep; i++ {
			indices[i] = total - keep + i
		}
	case "sample":
		seed := time.Now().UnixNano()
		if l.seed != nil {
			seed = *l.seed
		}
		// The sampled records come out in drawn order, so a seeded
		// run reproduces both the selection and the ordering.
		permutation := rand.New(rand.NewSource(seed)).Perm(total) //nolint:gosec // row sampling
		copy(indices, permutation[:keep])
	}

	return table.Select(indices), nil
}
