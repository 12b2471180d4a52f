// Package testutil provides testing utilities for vecrag.
//
// This package is intended for use in tests only. It provides seeded vector
// generators, brute-force ground truth, and fake embedding gateways.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vecs := rng.UnitVectors(100, 32)
//
// # Fake Gateways
//
//	gw := testutil.NewOneHotGateway(chunks)        // distinct axis per known text
//	flaky := &testutil.FlakyGateway{Next: gw, MaxBatch: 1}
//	poisoned := &testutil.FailingGateway{Next: gw, Poison: "bad"}
package testutil
