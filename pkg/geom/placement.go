package geom

// Placement is the geometric contract between a placeholder's content
// space and the canvas: a perspective quad, an optional warp mesh layered
// on top of it, and the bounds the rendered pixels are clipped to.
type Placement struct {
	Quad Quad

	// Mesh is nil for quad-only placements.
	Mesh *WarpMesh

	// Bounds is the placeholder's canvas bounding box.
	Bounds Rect
}

// Warped reports whether the placement carries a non-identity mesh.
func (p Placement) Warped() bool {
	return p.Mesh != nil && !p.Mesh.IsIdentity()
}
