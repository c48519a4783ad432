package purification_test

import (
	"fmt"

	"github.com/fumin/tensor"

	"github.com/bartandrews/tenpy/purification"
)

func Example() {
	// The infinite temperature state of 4 spin halves.
	psi := purification.InfiniteT(4, 2)

	bufs := [2]*tensor.Dense{tensor.Zeros(1), tensor.Zeros(1)}
	norm := purification.InnerProduct(psi, psi, bufs)
	var entropy float64
	for _, e := range psi.EntanglementEntropy() {
		entropy += e
	}
	fmt.Printf("Norm %.4f, entanglement %.4f\n", real(norm), entropy)

	// Output:
	// Norm 1.0000, entanglement 0.0000
}
