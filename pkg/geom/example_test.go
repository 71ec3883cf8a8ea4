package geom_test

import (
	"fmt"

	"github.com/matzehuels/mockupkit/pkg/geom"
)

func ExampleSquareToQuad() {
	q := geom.Quad{{0, 0}, {200, 20}, {190, 160}, {10, 150}}
	h, err := geom.SquareToQuad(q)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	p, _ := h.Apply(geom.Pt(1, 1))
	fmt.Printf("(1,1) -> (%.0f,%.0f)\n", p.X, p.Y)
	fmt.Println("affine:", h.IsAffine())
	// Output:
	// (1,1) -> (190,160)
	// affine: false
}

func ExampleQuad_Validate() {
	collinear := geom.Quad{{0, 0}, {100, 0}, {200, 0}, {0, 100}}
	fmt.Println(collinear.Validate() != nil)
	// Output:
	// true
}
