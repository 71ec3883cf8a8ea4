// Package document models layered mockup templates.
//
// # Overview
//
// A [Document] owns a canvas size and an ordered tree of [Layer] values.
// Every layer is exactly one of three kinds, fixed at parse time:
//
//   - [KindRaster]: pixels (or a solid fill) drawn inside its bounds
//   - [KindGroup]: an ordered list of child layers; its bounds are advisory
//   - [KindPlaceholder]: replaceable embedded content plus a [Placement]
//
// # Document Order
//
// Layers are stored back-to-front: the first layer in a list is the
// bottom-most. "Document order" is a pre-order depth-first walk of that
// storage order, so a group is visited before its children and its
// children before its next sibling. [Walk] implements it with an explicit
// stack, so hostile nesting cannot exhaust the goroutine stack.
//
// # Container Format
//
// [Parse] accepts either a .mockup bundle (a ZIP archive with a
// document.toml or document.json manifest plus raster assets) or a bare
// TOML/JSON manifest. Structural problems are reported as
// MALFORMED_DOCUMENT with the file and, when available, the line; unknown
// descriptor versions are UNSUPPORTED_FEATURE.
//
// A parsed Document is never modified by the render path and may be shared
// by concurrent readers.
package document
