// Command run cools a transverse field Ising chain from infinite
// temperature and prints its thermal observables at regular checkpoints.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/bartandrews/tenpy/linalg"
	"github.com/bartandrews/tenpy/purification"
	"github.com/bartandrews/tenpy/runlog"
	"github.com/bartandrews/tenpy/tebd"
)

const (
	fnameConfig = "config.yaml"
	fnameDB     = "diagnostics.db"
)

var (
	configPath = flag.String("c", "", "configuration file overriding the defaults")
	runDir     = flag.String("d", filepath.Join("runs", "ising"), "run directory")
)

// Config describes an imaginary time evolution of the transverse field
// Ising chain H = -J*sum(ZZ) - g*sum(X).
type Config struct {
	L    int     `yaml:"l"`
	J    float64 `yaml:"j"`
	G    float64 `yaml:"g"`
	Beta float64 `yaml:"beta"`
	// Checkpoints is the number of measurements on the way to Beta.
	Checkpoints int         `yaml:"checkpoints"`
	TEBD        tebd.Params `yaml:"tebd"`
}

func newConfig() Config {
	cfg := Config{L: 10, J: 1, G: 1, Beta: 1, Checkpoints: 10}
	cfg.TEBD = tebd.NewParams()
	cfg.TEBD.Trunc.ChiMax = 64
	return cfg
}

func readConfig(fpath string) (Config, error) {
	cfg := newConfig()
	if fpath == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(fpath)
	if err != nil {
		return Config{}, errors.Wrap(err, "")
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "")
	}
	return cfg, nil
}

// isingBonds returns the bond terms of the Ising chain, with the field of
// every site split evenly among the bonds containing it. Edge sites belong
// to one bond only and carry their full field there.
func isingBonds(l int, j, g float64) []*tensor.Dense {
	bonds := make([]*tensor.Dense, l)
	for i := 1; i < l; i++ {
		gl, gr := g/2, g/2
		if i == 1 {
			gl = g
		}
		if i == l-1 {
			gr = g
		}
		h := linalg.TwoSite(linalg.PauliZ, linalg.PauliZ).Mul(complex(float32(-j), 0))
		linalg.Axpy(h, complex(float32(-gl), 0), linalg.TwoSite(linalg.PauliX, linalg.Eye(2)))
		linalg.Axpy(h, complex(float32(-gr), 0), linalg.TwoSite(linalg.Eye(2), linalg.PauliX))
		bonds[i] = h
	}
	return bonds
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	if err := mainWithErr(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mainWithErr() error {
	cfg, err := readConfig(*configPath)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := os.MkdirAll(*runDir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}
	// Keep the fully resolved configuration next to the results.
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := os.WriteFile(filepath.Join(*runDir, fnameConfig), b, 0644); err != nil {
		return errors.Wrap(err, "")
	}

	recorder, err := runlog.Open(filepath.Join(*runDir, fnameDB))
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer recorder.Close()

	psi := purification.InfiniteT(cfg.L, 2)
	eng, err := tebd.NewEngine(psi, isingBonds(cfg.L, cfg.J, cfg.G), cfg.TEBD)
	if err != nil {
		return errors.Wrap(err, "")
	}
	eng.SetObserver(recorder)

	truncErrs := make([]float64, 0, cfg.Checkpoints)
	for i := range cfg.Checkpoints {
		if err := eng.RunImaginary(cfg.Beta / float64(cfg.Checkpoints)); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%d", i))
		}
		truncErrs = append(truncErrs, sum(eng.TruncationErrors()))
		log.Printf("run %s beta %.3f", recorder.RunID, eng.EvolvedTime())
	}

	evs, err := recorder.Evolutions()
	if err != nil {
		return errors.Wrap(err, "")
	}
	fmt.Printf("l,beta,e_bond,entropy,trunc_err\n")
	for i, ev := range evs {
		fmt.Printf("%d,%f,%f,%f,%g\n", cfg.L, ev.Time, ev.BondEnergy, ev.Entropy, truncErrs[i])
	}
	return nil
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}
