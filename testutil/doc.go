// Package testutil provides testing utilities for Recogo.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating synthetic point clouds, sampling
// rigid poses, and computing exact nearest neighbors as ground truth.
//
// # Synthetic Clouds
//
//	rng := testutil.NewRNG(seed)
//	cloud := rng.BoxCloud(500, r3.Vector{X: 0.1, Y: 0.05, Z: 0.2})
//	scene := testutil.TransformCloud(cloud, rng.UprightPose(0.5))
//
// # Ground Truth
//
//	dist := testutil.NearestDistance(cloud, query)
package testutil
