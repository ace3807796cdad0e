// Package recogo recognizes rigid objects in segmented 3-D point clouds.
//
// Recogo takes the clusters produced by a tabletop segmentation stage and
// reports which registered object models appear in them, where, and with what
// confidence. It is a recognition core, not a perception pipeline: plane
// removal, clustering, and calibration happen upstream.
//
// # Quick Start
//
//	reg := registry.New()
//	_ = reg.AddObjectCloud(1, mugCloud)
//	_ = reg.AddObjectCloud(2, boxCloud)
//
//	rec, err := recogo.New(reg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	detections, err := rec.Detect(ctx, clusters, 0.5, true)
//	for _, d := range detections {
//	    fmt.Println(d.ObjectID, d.Pose.Position, d.Confidence)
//	}
//
// Each cluster is fitted concurrently against the registered models. With
// merging enabled, clusters whose best fits land within the merge threshold
// are treated as fragments of one object, combined, and refitted. Results
// stay in input cluster order.
//
// # Components
//
// The default configuration fits every registered model with an iterative
// translation fitter over a k-d tree index. Both ends are replaceable:
//
//	rec, err := recogo.New(reg,
//	    recogo.WithIndexBuilder(grid.Builder()),
//	    recogo.WithFitter(myFitter),
//	    recogo.WithResourceController(resource.NewController(resource.Config{
//	        MaxConcurrentFits: 4,
//	    })),
//	)
//
// # Model Libraries
//
// Registered models can be persisted as immutable snapshots through the
// library package, against local disk, memory, S3, or MinIO stores:
//
//	lib := library.New(meshstore.NewLocalStore("./models"))
//	manifest, err := lib.Save(ctx, reg)
//	_, err = lib.Load(ctx, reg)
//
// # Key Features
//
//   - Concurrent per-cluster fitting with bounded fan-out
//   - Greedy merge-and-refit for over-segmented objects
//   - Pluggable fitters and nearest-neighbor indexes
//   - Model registry with mesh sampling and PLY decode
//   - Snapshot persistence (local/S3/MinIO) with zstd or lz4 compression
//   - Structured logging (slog) and pluggable metrics
package recogo
