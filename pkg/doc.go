// Package pkg provides the core libraries for mockupkit placeholder replacement.
//
// # Overview
//
// Mockupkit takes a layered mockup template (a mug, a poster, a phone case),
// finds a named placeholder layer, fits a replacement raster into it with the
// placeholder's perspective and warp, and flattens the result to a single
// image. The pkg directory is organized into four areas:
//
//  1. Template model: [document], [locate], [inspect]
//  2. Geometry and rendering: [geom], [placement], [fit], [compose], [encode]
//  3. Orchestration: [pipeline], [cache], [catalog]
//  4. Support: [errors], [observability], [fonts], [testpattern], [buildinfo]
//
// # Architecture
//
// The data flow for one job:
//
//	template bytes + replacement bytes
//	         ↓
//	    [document] package (parse manifest and assets)
//	         ↓
//	    [locate] package (find the placeholder by name)
//	         ↓
//	    [placement] package (quad, homography, warp mesh)
//	         ↓
//	    [fit] package (map the replacement into content space)
//	         ↓
//	    [compose] package (warp and flatten the layer stack)
//	         ↓
//	    [encode] package (PNG/JPEG/BMP/TIFF bytes)
//
// [pipeline.Runner] drives these stages, consults the [cache] and reports a
// [pipeline.Result] whether the job succeeded or not.
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/matzehuels/mockupkit/pkg/cache"
//	    "github.com/matzehuels/mockupkit/pkg/pipeline"
//	)
//
//	runner := pipeline.NewRunner(cache.NewNullCache(), nil, nil)
//	defer runner.Close()
//
//	res, err := runner.Execute(context.Background(), pipeline.Job{
//	    Template:    templateBytes,
//	    Placeholder: "front_surface",
//	    Replacement: designBytes,
//	    Options:     pipeline.Options{Format: "png", Fit: "contain"},
//	})
//	if err != nil {
//	    // res.Err carries the same error; res.Status says how far the job got
//	}
//	os.WriteFile("mug.png", res.Output, 0o644)
//
// # Main Packages
//
// [document] - Template model. A template is a zip bundle or a bare TOML/JSON
// manifest describing a canvas and a tree of raster, group and placeholder
// layers.
//
// [locate] - Case-insensitive placeholder lookup that distinguishes "absent"
// from "present but not a placeholder".
//
// [inspect] - Layer listings, placeholder geometry reports and Graphviz
// renderings of the layer tree.
//
// [geom] - Points, rectangles, quads, homographies and bilinear meshes.
//
// [placement] - Resolves a placeholder's stored descriptor into a homography
// and an optional warp mesh, synthesizing the quad from bounds when absent.
//
// [fit] - Stretch, contain and cover fits of a replacement into the
// placeholder's content size.
//
// [compose] - Rasterizes the template with the replaced placeholder, either by
// flattening every layer or by patching only the placeholder region.
//
// [encode] - Output encoders and replacement decoders.
//
// [pipeline] - Job execution with a state machine, batching over a worker
// pool, cancellation and structured results. Used by the CLI and the HTTP
// server alike.
//
// [cache] - Result caching keyed by input hashes. FileCache for the CLI,
// RedisCache for shared deployments, NullCache to disable.
//
// [catalog] - Product catalog backed by a TOML file or MongoDB with GridFS
// template storage.
//
// [errors] - Coded errors shared by every layer.
//
// [observability] - Hooks for pipeline stages and HTTP requests.
//
// # Testing
//
// Run tests:
//
//	go test ./...                        # All tests
//	go test ./pkg/pipeline/...           # Specific package
//	go test -run Example ./pkg/...       # Examples only
//	go test -tags integration ./pkg/...  # Include Redis and MongoDB tests
//
// [document]: https://pkg.go.dev/github.com/matzehuels/mockupkit/pkg/document
// [locate]: https://pkg.go.dev/github.com/matzehuels/mockupkit/pkg/locate
// [inspect]: https://pkg.go.dev/github.com/matzehuels/mockupkit/pkg/inspect
// [geom]: https://pkg.go.dev/github.com/matzehuels/mockupkit/pkg/geom
// [placement]: https://pkg.go.dev/github.com/matzehuels/mockupkit/pkg/placement
// [fit]: https://pkg.go.dev/github.com/matzehuels/mockupkit/pkg/fit
// [compose]: https://pkg.go.dev/github.com/matzehuels/mockupkit/pkg/compose
// [encode]: https://pkg.go.dev/github.com/matzehuels/mockupkit/pkg/encode
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/mockupkit/pkg/pipeline
// [pipeline.Runner]: https://pkg.go.dev/github.com/matzehuels/mockupkit/pkg/pipeline#Runner
// [pipeline.Result]: https://pkg.go.dev/github.com/matzehuels/mockupkit/pkg/pipeline#Result
// [cache]: https://pkg.go.dev/github.com/matzehuels/mockupkit/pkg/cache
// [catalog]: https://pkg.go.dev/github.com/matzehuels/mockupkit/pkg/catalog
// [errors]: https://pkg.go.dev/github.com/matzehuels/mockupkit/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/mockupkit/pkg/observability
// [fonts]: https://pkg.go.dev/github.com/matzehuels/mockupkit/pkg/fonts
// [testpattern]: https://pkg.go.dev/github.com/matzehuels/mockupkit/pkg/testpattern
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/mockupkit/pkg/buildinfo
package pkg
