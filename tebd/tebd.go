// Package tebd implements time evolving block decimation of purification
// matrix product states.
//
// A bond update contracts a two-site gate into the wavefunction of a bond,
// optionally applies a disentangling unitary to the auxiliary legs, and
// splits the result back into two site tensors with a truncated singular
// value decomposition. Sweeping the updates over all bonds evolves the state
// in real or imaginary time; imaginary time evolution of the infinite
// temperature state yields thermal ensembles.
//
// An Engine mutates its state strictly sequentially. Updates of neighbouring
// bonds share a site tensor, so nothing in this package is safe for
// concurrent use.
//
// References:
//   - Section 7.2 Finite temperature simulations, The density-matrix renormalization group in the age of matrix product states, Ulrich Schollwock
//   - Reducing the numerical effort of finite-temperature density matrix renormalization group calculations, Christoph Karrasch, Jens H. Bardarson, Joel E. Moore
package tebd

import (
	"fmt"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"

	"github.com/bartandrews/tenpy/linalg"
	"github.com/bartandrews/tenpy/purification"
	"github.com/bartandrews/tenpy/trunc"
)

const (
	// thetaLeftAxis is the left virtual axis of a two-site wavefunction.
	thetaLeftAxis  = 0
	thetaP0Axis    = 1
	thetaQ0Axis    = 2
	thetaP1Axis    = 3
	thetaQ1Axis    = 4
	thetaRightAxis = 5

	// gateP0Axis is the first physical output axis of a bond gate.
	gateP0Axis     = 0
	gateP1Axis     = 1
	gateP0ConjAxis = 2
	gateP1ConjAxis = 3

	// auxQ0Axis is the first auxiliary output axis of a disentangler.
	auxQ0Axis     = 0
	auxQ1Axis     = 1
	auxQ0ConjAxis = 2
	auxQ1ConjAxis = 3
)

// EvoType selects between real and imaginary time evolution.
type EvoType int

const (
	// EvoReal evolves by exp(-i*dt*H).
	EvoReal EvoType = iota
	// EvoImag evolves by exp(-dt*H), cooling the state.
	EvoImag
)

// Params configure a time evolution.
type Params struct {
	// Dt is the time step of a single sweep.
	Dt float64 `yaml:"dt"`
	// Order of the Trotter decomposition, either 1 or 2.
	Order int `yaml:"order"`
	// Disentangle selects the strategy applied to the auxiliary legs before
	// every truncation, one of "", "none", "backwards", "renyi", or a name
	// installed with Register.
	Disentangle string `yaml:"disentangle"`
	// DisentEps stops the Renyi iteration once the entropy changes by less
	// than it.
	DisentEps float64 `yaml:"disent_eps"`
	// DisentMaxIter caps the number of Renyi iterations.
	DisentMaxIter int `yaml:"disent_max_iter"`
	// Trunc is handed through to the truncated factorization.
	Trunc trunc.Params `yaml:",inline"`
}

// NewParams returns the default evolution parameters.
func NewParams() Params {
	p := Params{}
	p.Dt = 0.1
	p.Order = 2
	p.DisentEps = 1e-10
	p.DisentMaxIter = 20
	return p
}

// An Observer receives diagnostics of a running evolution. Calls happen
// synchronously on the updating goroutine, after the reported event has
// committed.
type Observer interface {
	// BondUpdated reports the truncation error added by one bond update.
	BondUpdated(bond int, truncErr float64)
	// Disentangled reports the Renyi iteration count of one bond update and
	// the entropy change of the last iteration.
	Disentangled(bond, iterations int, delta float64)
	// Evolved reports the evolved time, the average bond energy and the
	// average entanglement entropy after an imaginary time run.
	Evolved(time, bondEnergy, entropy float64)
}

// An Engine evolves a purification state by repeated bond updates.
//
// A bond update rewrites the two site tensors and the weights of its bond as
// one atomic unit: a failing update leaves the state exactly as it was.
type Engine struct {
	psi    *purification.MPS
	hBonds []*tensor.Dense
	params Params

	disentangler Disentangler
	observer     Observer

	// us[k][i] is the evolution gate of bond i for the k-th Trotter fraction
	// of the current gate set.
	us          [][]*tensor.Dense
	uParam      uParam
	evolvedTime float64
	truncErrs   []float64

	bufs [5]*tensor.Dense
}

// uParam describes the gate set held by an engine.
type uParam struct {
	order int
	dt    float64
	evo   EvoType
}

// NewEngine prepares the evolution of psi under the given two-site bond
// terms. hBonds[i] acts on the sites of bond i, in the same axis convention
// as gates; entry zero is unused. A nil hBonds is allowed when gates are
// supplied to UpdateBond directly.
func NewEngine(psi *purification.MPS, hBonds []*tensor.Dense, params Params) (*Engine, error) {
	if hBonds != nil {
		if len(hBonds) != psi.Len() {
			return nil, errors.Errorf("%d bond terms for %d sites", len(hBonds), psi.Len())
		}
		for i := 1; i < len(hBonds); i++ {
			if hBonds[i] == nil {
				return nil, errors.Errorf("no term at bond %d", i)
			}
		}
	}

	eng := &Engine{psi: psi, hBonds: hBonds, params: params, truncErrs: make([]float64, psi.Len())}
	for i := range eng.bufs {
		eng.bufs[i] = tensor.Zeros(1)
	}
	var err error
	if eng.disentangler, err = newDisentangler(eng, params.Disentangle); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return eng, nil
}

// Params returns the evolution parameters.
func (eng *Engine) Params() Params { return eng.params }

// SetObserver directs diagnostics to o. A nil o silences them.
func (eng *Engine) SetObserver(o Observer) { eng.observer = o }

// EvolvedTime returns the total time evolved by Update.
func (eng *Engine) EvolvedTime() float64 { return eng.evolvedTime }

// TruncationErrors returns the accumulated squared weight discarded at every
// bond. Entry i corresponds to bond i, entry zero is unused. The returned
// slice is live and updated by subsequent bond updates.
func (eng *Engine) TruncationErrors() []float64 { return eng.truncErrs }

// CalcU builds the evolution gates exp(z*f*hBonds[i]) of all bonds, where
// z is -dt for imaginary and -i*dt for real time, and f runs over the
// Trotter fractions of the requested order: {1} for order 1 and {1/2, 1}
// for order 2. Building is skipped when the held gate set already matches.
func (eng *Engine) CalcU(order int, dt float64, evo EvoType) error {
	p := uParam{order: order, dt: dt, evo: evo}
	if eng.us != nil && eng.uParam == p {
		return nil
	}
	if eng.hBonds == nil {
		return errors.Errorf("no bond terms")
	}
	var fracs []float64
	switch order {
	case 1:
		fracs = []float64{1}
	case 2:
		fracs = []float64{0.5, 1}
	default:
		return errors.Errorf("unsupported order %d", order)
	}
	z := complex(-dt, 0)
	switch evo {
	case EvoImag:
	case EvoReal:
		z = complex(0, -dt)
	default:
		return errors.Errorf("%d", evo)
	}

	us := make([][]*tensor.Dense, len(fracs))
	for k, f := range fracs {
		us[k] = make([]*tensor.Dense, len(eng.hBonds))
		for i := 1; i < len(eng.hBonds); i++ {
			h := eng.hBonds[i]
			hs := h.Shape()
			d0, d1 := hs[gateP0Axis], hs[gateP1Axis]
			hm := resetCopy(eng.bufs[0], h).Reshape(d0*d1, d0*d1)
			u, err := linalg.ExpHermitian(hm, z*complex(f, 0))
			if err != nil {
				return errors.Wrap(err, fmt.Sprintf("%d", i))
			}
			us[k][i] = u.Reshape(d0, d1, d0, d1)
		}
	}
	eng.us, eng.uParam = us, p
	return nil
}

// Update performs n sweeps with the gate set built by CalcU, advancing the
// evolved time by n time steps. A first order sweep applies the gates to the
// odd bonds and then to the even bonds; a second order sweep applies half
// step gates to the odd bonds, full step gates to the even bonds, and half
// step gates to the odd bonds again.
func (eng *Engine) Update(n int) error {
	if eng.us == nil {
		return errors.Errorf("no gates, call CalcU first")
	}
	// Each pair is one layer of the Trotter decomposition, given as the
	// gate set index and the bond parity the layer acts on.
	layers := [][2]int{{0, 1}, {1, 0}, {0, 1}}
	if eng.uParam.order == 1 {
		layers = [][2]int{{0, 1}, {0, 0}}
	}
	for range n {
		for _, l := range layers {
			if err := eng.sweep(eng.us[l[0]], l[1]); err != nil {
				return errors.Wrap(err, "")
			}
		}
		eng.evolvedTime += eng.uParam.dt
	}
	return nil
}

// sweep applies the gates to every bond whose index has the given parity.
func (eng *Engine) sweep(us []*tensor.Dense, parity int) error {
	for i := 1; i < eng.psi.Len(); i++ {
		if i%2 != parity {
			continue
		}
		if _, err := eng.UpdateBond(i, us[i]); err != nil {
			return errors.Wrap(err, "")
		}
	}
	return nil
}

// UpdateBond applies a two-site gate to bond i.
//
// The wavefunction of the bond is contracted with the gate over the physical
// legs, handed to the configured disentangler, and split back into two
// right-canonical site tensors by a truncated singular value decomposition.
// The squared weight discarded by the truncation is returned, and added to
// the accumulator of the bond.
func (eng *Engine) UpdateBond(i int, gate *tensor.Dense) (float64, error) {
	psi := eng.psi
	bufs2 := [2]*tensor.Dense{eng.bufs[2], eng.bufs[3]}

	// theta has axes {vL, p0, q0, p1, q1, vR}.
	theta := applyGate(eng.bufs[0], gate, psi.Theta(eng.bufs[1], i, 1, bufs2), eng.bufs[4])
	theta, u, err := eng.disentangler.Disentangle(theta, i, gate)
	if err != nil {
		return 0, errors.Wrap(err, fmt.Sprintf("%d", i))
	}

	sh := theta.Shape()
	dvL, d0, dq0 := sh[thetaLeftAxis], sh[thetaP0Axis], sh[thetaQ0Axis]
	d1, dq1, dvR := sh[thetaP1Axis], sh[thetaQ1Axis], sh[thetaRightAxis]

	// Split theta across the bond, grouping {vL, p0, q0} against
	// {p1, q1, vR}.
	_, s, vh, truncErr, renormalize, err := trunc.SVDTheta(theta.Reshape(dvL*d0*dq0, d1*dq1*dvR), eng.params.Trunc)
	if err != nil {
		return 0, errors.Wrap(err, fmt.Sprintf("%d", i))
	}

	// The new left tensor is in principle the left factor times the new
	// weights divided by the old ones, but the old weights may be
	// arbitrarily close to zero. Contracting the wavefunction C built
	// without the left weights against the right factor gives the same
	// tensor with no inverse at all: B_L = SL^-1 U S = SL^-1 U S V V^H
	// = C V^H.
	c := applyGate(eng.bufs[0], gate, psi.Theta(eng.bufs[1], i, 0, bufs2), eng.bufs[4])
	if u != nil {
		c = applyAux(eng.bufs[1], u, c, eng.bufs[4])
	}
	bL := tensor.Product(tensor.Zeros(1), c.Reshape(dvL, d0, dq0, d1*dq1*dvR), vh.Conj(), [][2]int{{3, 1}})
	// Divide out the renormalization so that the state keeps unit norm.
	bL.Mul(complex(float32(1/renormalize), 0))
	bR := vh.Reshape(-1, d1, dq1, dvR)

	psi.SetBondWeight(i, s)
	psi.SetSite(i-1, bL, purification.FormB)
	psi.SetSite(i, bR, purification.FormB)
	eng.truncErrs[i] += truncErr
	if eng.observer != nil {
		eng.observer.BondUpdated(i, truncErr)
	}
	return truncErr, nil
}

// RunImaginary cools the state down by the inverse temperature beta, using
// beta rounded to the nearest multiple of the configured time step. The
// average bond energy and entanglement entropy are reported to the observer
// afterwards.
func (eng *Engine) RunImaginary(beta float64) error {
	if err := eng.CalcU(eng.params.Order, eng.params.Dt, EvoImag); err != nil {
		return errors.Wrap(err, "")
	}
	if err := eng.Update(int(beta/eng.params.Dt + 0.5)); err != nil {
		return errors.Wrap(err, "")
	}
	if eng.observer != nil {
		es, err := eng.BondEnergies()
		if err != nil {
			return errors.Wrap(err, "")
		}
		eng.observer.Evolved(eng.evolvedTime, mean(es), mean(eng.psi.EntanglementEntropy()))
	}
	return nil
}

// BondEnergies returns the expectation value of every bond term in the
// current state.
func (eng *Engine) BondEnergies() ([]float64, error) {
	if eng.hBonds == nil {
		return nil, errors.Errorf("no bond terms")
	}
	bufs2 := [2]*tensor.Dense{eng.bufs[2], eng.bufs[3]}
	es := make([]float64, 0, eng.psi.Len()-1)
	for i := 1; i < eng.psi.Len(); i++ {
		theta := eng.psi.Theta(eng.bufs[1], i, 1, bufs2)
		hTheta := applyGate(eng.bufs[0], eng.hBonds[i], theta, eng.bufs[4])
		var e complex64
		for ijk, v := range hTheta.All() {
			e += conj(theta.At(ijk...)) * v
		}
		es = append(es, float64(real(e)))
	}
	return es, nil
}

// disentangled forwards a Disentangled event to the observer.
func (eng *Engine) disentangled(bond, iterations int, delta float64) {
	if eng.observer == nil {
		return
	}
	eng.observer.Disentangled(bond, iterations, delta)
}

// applyGate contracts a two-site operator with axes {p0, p1, p0*, p1*} onto
// the physical legs of theta.
func applyGate(out, gate, theta, buf *tensor.Dense) *tensor.Dense {
	// gt has axes {p0, p1, vL, q0, q1, vR}.
	gt := tensor.Product(buf, gate, theta, [][2]int{{gateP0ConjAxis, thetaP0Axis}, {gateP1ConjAxis, thetaP1Axis}})
	return resetCopy(out, gt.Transpose(2, 0, 3, 1, 4, 5))
}

// applyAux contracts a unitary with axes {q0, q1, q0*, q1*} onto the
// auxiliary legs of theta.
func applyAux(out, u, theta, buf *tensor.Dense) *tensor.Dense {
	// ut has axes {q0, q1, vL, p0, p1, vR}.
	ut := tensor.Product(buf, u, theta, [][2]int{{auxQ0ConjAxis, thetaQ0Axis}, {auxQ1ConjAxis, thetaQ1Axis}})
	return resetCopy(out, ut.Transpose(2, 3, 0, 4, 1, 5))
}

func mean(xs []float64) float64 {
	var m float64
	for _, x := range xs {
		m += x
	}
	return m / float64(len(xs))
}

func conj(x complex64) complex64 {
	return complex(real(x), -imag(x))
}

func resetCopy(dst, src *tensor.Dense) *tensor.Dense {
	shape := src.Shape()
	zeroDigit := make([]int, len(shape))
	dst.Reset(shape...).Set(zeroDigit, src)
	return dst
}
