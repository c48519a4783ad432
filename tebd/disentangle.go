package tebd

import (
	"math"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"

	"github.com/bartandrews/tenpy/linalg"
)

// A Disentangler transforms the wavefunction of a bond before it is split,
// reducing the entanglement carried by the auxiliary legs. Without it,
// purified states accumulate auxiliary entanglement that is invisible to
// physical observables but inflates the bond dimension.
//
// Disentangle receives the wavefunction with the gate already applied, with
// axes {vL, p0, q0, p1, q1, vR}, and returns the transformed wavefunction
// together with the unitary contracted onto the auxiliary legs, with axes
// {q0, q1, q0*, q1*}. A nil unitary means identity, in which case the
// wavefunction is returned unchanged. The returned tensors remain valid
// until the next Disentangle call on the same bond.
type Disentangler interface {
	Disentangle(theta *tensor.Dense, bond int, gate *tensor.Dense) (*tensor.Dense, *tensor.Dense, error)
}

var disentanglers = map[string]func(*Engine) Disentangler{}

// Register installs a disentangler constructor under the given name, making
// it available through Params.Disentangle. Registering a name again
// overwrites the earlier constructor.
func Register(name string, f func(*Engine) Disentangler) {
	disentanglers[name] = f
}

func newDisentangler(eng *Engine, name string) (Disentangler, error) {
	switch name {
	case "", "none":
		return noneDisentangler{}, nil
	case "backwards":
		return &backwardsDisentangler{eng: eng, u: tensor.Zeros(1), out: tensor.Zeros(1), buf: tensor.Zeros(1)}, nil
	case "renyi":
		return newRenyiDisentangler(eng), nil
	}
	if f, ok := disentanglers[name]; ok {
		return f(eng), nil
	}
	return nil, errors.Errorf("invalid disentangle %q", name)
}

// noneDisentangler leaves the auxiliary legs untouched.
type noneDisentangler struct{}

func (noneDisentangler) Disentangle(theta *tensor.Dense, bond int, gate *tensor.Dense) (*tensor.Dense, *tensor.Dense, error) {
	return theta, nil, nil
}

// backwardsDisentangler evolves the auxiliary legs backwards in time,
// undoing the entanglement growth of real time evolution on the auxiliary
// half of the purification. Imaginary time evolution has no backwards
// counterpart that preserves the thermal state, so there it does nothing.
type backwardsDisentangler struct {
	eng *Engine
	u   *tensor.Dense
	out *tensor.Dense
	buf *tensor.Dense
}

func (d *backwardsDisentangler) Disentangle(theta *tensor.Dense, bond int, gate *tensor.Dense) (*tensor.Dense, *tensor.Dense, error) {
	if d.eng.uParam.evo == EvoImag {
		return theta, nil, nil
	}
	// The conjugated gate, with its physical legs read as auxiliary legs,
	// is the backwards evolution of the auxiliary space.
	u := resetCopy(d.u, gate.Conj())
	return applyAux(d.out, u, theta, d.buf), u, nil
}

// renyiDisentangler searches for the unitary on the auxiliary legs that
// minimizes the second Renyi entropy across the bond. Each iteration
// linearizes the entropy in the unitary and solves the resulting nearest
// unitary problem exactly, so the entropy never increases.
//
// Reference: Finding purifications with minimal entanglement,
// Johannes Hauschild, Eyal Leviatan, Jens H. Bardarson, Ehud Altman,
// Michael P. Zaletel, Frank Pollmann.
type renyiDisentangler struct {
	eng  *Engine
	u    *tensor.Dense
	out  *tensor.Dense
	bufs [3]*tensor.Dense
}

func newRenyiDisentangler(eng *Engine) *renyiDisentangler {
	d := &renyiDisentangler{eng: eng, u: tensor.Zeros(1), out: tensor.Zeros(1)}
	for i := range d.bufs {
		d.bufs[i] = tensor.Zeros(1)
	}
	return d
}

func (d *renyiDisentangler) Disentangle(theta *tensor.Dense, bond int, gate *tensor.Dense) (*tensor.Dense, *tensor.Dense, error) {
	sh := theta.Shape()
	identityAux(d.u, sh[thetaQ0Axis], sh[thetaQ1Axis])

	sOld, delta := math.Inf(1), math.Inf(1)
	var iters int
	for iters < d.eng.params.DisentMaxIter {
		s2, err := d.iter(theta)
		if err != nil {
			return nil, nil, errors.Wrap(err, "")
		}
		iters++
		delta = sOld - s2
		sOld = s2
		if math.Abs(delta) < d.eng.params.DisentEps {
			break
		}
	}
	d.eng.disentangled(bond, iters, delta)
	return applyAux(d.out, d.u, theta, d.bufs[0]), d.u, nil
}

// iter returns the second Renyi entropy under the current unitary, and
// replaces the unitary with the next candidate.
//
// Writing rho for the density matrix of the {vL, p0, q0} subsystem after
// applying the unitary u, tr(rho^2) is linear in any single occurrence of u
// in the four-fold contraction of the wavefunction with itself. Maximizing
// that linearization over unitaries is a Procrustes problem, solved by the
// singular value decomposition of the gradient d tr(rho^2) / du.
func (d *renyiDisentangler) iter(theta *tensor.Dense) (float64, error) {
	// uTheta has the axes of theta, {vL, p0, q0, p1, q1, vR}.
	uTheta := applyAux(d.bufs[0], d.u, theta, d.bufs[1])
	// rhoL is rho with axes {vL, p0, q0, vL*, p0*, q0*}.
	rhoL := tensor.Product(d.bufs[1], uTheta, uTheta.Conj(), [][2]int{{thetaP1Axis, thetaP1Axis}, {thetaQ1Axis, thetaQ1Axis}, {thetaRightAxis, thetaRightAxis}})
	// rr is rho times the conjugated wavefunction, with axes
	// {p1*, q1*, vR*, vL*, p0*, q0*}.
	rr := tensor.Product(d.bufs[2], uTheta.Conj(), rhoL, [][2]int{{thetaLeftAxis, 0}, {thetaP0Axis, 1}, {thetaQ0Axis, 2}})
	// grad is d tr(rho^2) / du up to conjugation, with axes
	// {q0, q1, q1*, q0*}.
	grad := tensor.Product(d.bufs[1], theta, rr, [][2]int{{thetaLeftAxis, 3}, {thetaP0Axis, 4}, {thetaP1Axis, 0}, {thetaRightAxis, 2}})

	// Closing the last pair of auxiliary legs with u itself gives tr(rho^2).
	var tr complex128
	for ix, v := range grad.All() {
		tr += complex128(d.u.At(ix[3], ix[2], ix[0], ix[1])) * complex128(v)
	}
	s2 := -math.Log(real(tr))

	gs := grad.Shape()
	dq0, dq1 := gs[0], gs[1]
	gm := resetCopy(d.bufs[0], grad.Transpose(0, 1, 3, 2)).Reshape(dq0*dq1, dq0*dq1)
	w, _, vh, err := linalg.SVD(gm)
	if err != nil {
		return 0, errors.Wrap(err, "")
	}
	// The unitary closest to the gradient is W VH. Since grad is the
	// derivative with respect to the unconjugated u, the new u is its
	// hermitian conjugate.
	d.u = resetCopy(d.u, tensor.Product(d.bufs[1], w, vh, [][2]int{{1, 0}}).H()).Reshape(dq0, dq1, dq0, dq1)
	return s2, nil
}

// identityAux writes the identity on a pair of auxiliary legs into out.
func identityAux(out *tensor.Dense, dq0, dq1 int) *tensor.Dense {
	out.Reset(dq0, dq1, dq0, dq1)
	for a := range dq0 {
		for b := range dq1 {
			out.SetAt([]int{a, b, a, b}, 1)
		}
	}
	return out
}
