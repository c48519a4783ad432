package tebd_test

import (
	"fmt"
	"log"
	"math/cmplx"

	"github.com/fumin/tensor"

	"github.com/bartandrews/tenpy/linalg"
	"github.com/bartandrews/tenpy/purification"
	"github.com/bartandrews/tenpy/tebd"
)

func Example() {
	// Evolve an infinite temperature Ising chain in real time. Infinite
	// temperature states do not change under unitary evolution, but a
	// naive simulation still grows the auxiliary entanglement with every
	// step. The backwards disentangler removes it exactly, so the bond
	// dimension stays at one.
	const l = 6
	const j, g = 1, 0.8
	bonds := make([]*tensor.Dense, l)
	for i := 1; i < l; i++ {
		gl, gr := g/2, g/2
		if i == 1 {
			gl = g
		}
		if i == l-1 {
			gr = g
		}
		h := linalg.TwoSite(linalg.PauliZ, linalg.PauliZ).Mul(complex(-j, 0))
		linalg.Axpy(h, complex(float32(-gl), 0), linalg.TwoSite(linalg.PauliX, linalg.Eye(2)))
		linalg.Axpy(h, complex(float32(-gr), 0), linalg.TwoSite(linalg.Eye(2), linalg.PauliX))
		bonds[i] = h
	}

	params := tebd.NewParams()
	params.Dt = 0.3
	params.Disentangle = "backwards"
	params.Trunc.ChiMax = 1
	psi := purification.InfiniteT(l, 2)
	eng, err := tebd.NewEngine(psi, bonds, params)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	if err := eng.CalcU(params.Order, params.Dt, tebd.EvoReal); err != nil {
		log.Fatalf("%+v", err)
	}
	if err := eng.Update(4); err != nil {
		log.Fatalf("%+v", err)
	}

	// The evolved state still overlaps fully with infinite temperature.
	var bufs [2]*tensor.Dense
	for i := range len(bufs) {
		bufs[i] = tensor.Zeros(1)
	}
	overlap := purification.InnerProduct(purification.InfiniteT(l, 2), psi, bufs)
	fmt.Printf("Overlap %.4f\n", cmplx.Abs(complex128(overlap)))

	// Output:
	// Overlap 1.0000
}
