// Package geom provides the planar geometry behind placeholder placement:
// points, axis-aligned rectangles, perspective quadrilaterals, 3x3
// homographies and warp meshes.
//
// # Overview
//
// A placeholder's embedded content lives in its own normalized space, the
// unit square [0,1]×[0,1]. Its placement on the canvas is described by a
// [Quad] (the canvas positions of the content's four corners) and an
// optional [WarpMesh] that bends the result non-linearly.
//
// [SquareToQuad] solves the 4-point projective system that maps the unit
// square onto a quad:
//
//	q := geom.Quad{{0, 0}, {200, 20}, {190, 160}, {10, 150}}
//	h, err := geom.SquareToQuad(q)
//	if err != nil {
//	    // errors.ErrCodeDegenerateGeometry
//	}
//	p, _ := h.Apply(geom.Pt(1, 1)) // (190, 160)
//
// # Degenerate Quads
//
// A quad whose corners are duplicated, collinear or self-intersecting
// cannot be solved into a usable transform. [Quad.Validate] rejects those
// before any solve, so callers never receive a silently wrong matrix.
//
// # Warp Meshes
//
// A [WarpMesh] is a rows×cols lattice over content space. Control point
// (i, j) sits at (j/(cols-1), i/(rows-1)) and carries a canvas-space
// displacement. [WarpMesh.Displacement] bilinearly interpolates the four
// displacements of the enclosing lattice cell.
//
// All types in this package are values or read-only after construction and
// are safe for concurrent use.
package geom
