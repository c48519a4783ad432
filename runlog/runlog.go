// Package runlog records the diagnostics of time evolution runs in a SQLite
// database, one row per event.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	tableUpdates     = "updates"
	tableDisentangle = "disentangle"
	tableEvolution   = "evolution"
)

// A Recorder writes the events of one evolution run to a database, and
// reads them back. It implements the observer of the tebd package; the
// observer methods panic when a write fails. A Recorder is not safe for
// concurrent use.
type Recorder struct {
	// RunID distinguishes the rows of this run in a shared database.
	RunID string

	db  *sql.DB
	seq int
}

// Open opens the database at dbPath, creating it and its tables if needed,
// and returns a Recorder with a fresh run ID. Earlier runs in the database
// are kept.
func Open(dbPath string) (*Recorder, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := prepareDB(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}
	return &Recorder{RunID: uuid.New().String(), db: db}, nil
}

// Close closes the database, keeping its contents.
func (r *Recorder) Close() error {
	return r.db.Close()
}

// BondUpdated records the truncation error of one bond update.
func (r *Recorder) BondUpdated(bond int, truncErr float64) {
	sqlStr := fmt.Sprintf(`INSERT INTO %s (run_id, seq, bond, trunc_err) VALUES (?, ?, ?, ?)`, tableUpdates)
	r.exec(sqlStr, r.RunID, r.next(), bond, truncErr)
}

// Disentangled records the iteration count and final entropy change of one
// disentangling.
func (r *Recorder) Disentangled(bond, iterations int, delta float64) {
	sqlStr := fmt.Sprintf(`INSERT INTO %s (run_id, seq, bond, iterations, delta) VALUES (?, ?, ?, ?, ?)`, tableDisentangle)
	r.exec(sqlStr, r.RunID, r.next(), bond, iterations, delta)
}

// Evolved records the evolved time, average bond energy and average
// entanglement entropy of a checkpoint.
func (r *Recorder) Evolved(time, bondEnergy, entropy float64) {
	sqlStr := fmt.Sprintf(`INSERT INTO %s (run_id, seq, time, bond_energy, entropy) VALUES (?, ?, ?, ?, ?)`, tableEvolution)
	r.exec(sqlStr, r.RunID, r.next(), time, bondEnergy, entropy)
}

// An Update is one recorded bond update.
type Update struct {
	Seq      int
	Bond     int
	TruncErr float64
}

// Updates returns the bond updates of this run in recording order.
func (r *Recorder) Updates() ([]Update, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT seq, bond, trunc_err FROM %s WHERE run_id=? ORDER BY seq`, tableUpdates)
	rows, err := r.db.QueryContext(ctx, sqlStr, r.RunID)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	us := make([]Update, 0)
	for rows.Next() {
		var u Update
		if err := rows.Scan(&u.Seq, &u.Bond, &u.TruncErr); err != nil {
			return nil, errors.Wrap(err, "")
		}
		us = append(us, u)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return us, nil
}

// A Disentanglement is one recorded disentangling.
type Disentanglement struct {
	Seq        int
	Bond       int
	Iterations int
	Delta      float64
}

// Disentanglements returns the disentanglings of this run in recording
// order.
func (r *Recorder) Disentanglements() ([]Disentanglement, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT seq, bond, iterations, delta FROM %s WHERE run_id=? ORDER BY seq`, tableDisentangle)
	rows, err := r.db.QueryContext(ctx, sqlStr, r.RunID)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	ds := make([]Disentanglement, 0)
	for rows.Next() {
		var d Disentanglement
		if err := rows.Scan(&d.Seq, &d.Bond, &d.Iterations, &d.Delta); err != nil {
			return nil, errors.Wrap(err, "")
		}
		ds = append(ds, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return ds, nil
}

// An Evolution is one recorded checkpoint.
type Evolution struct {
	Seq        int
	Time       float64
	BondEnergy float64
	Entropy    float64
}

// Evolutions returns the checkpoints of this run in recording order.
func (r *Recorder) Evolutions() ([]Evolution, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT seq, time, bond_energy, entropy FROM %s WHERE run_id=? ORDER BY seq`, tableEvolution)
	rows, err := r.db.QueryContext(ctx, sqlStr, r.RunID)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	es := make([]Evolution, 0)
	for rows.Next() {
		var e Evolution
		if err := rows.Scan(&e.Seq, &e.Time, &e.BondEnergy, &e.Entropy); err != nil {
			return nil, errors.Wrap(err, "")
		}
		es = append(es, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return es, nil
}

func (r *Recorder) exec(sqlStr string, args ...any) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		panic(fmt.Sprintf("%s %#v %+v", sqlStr, args, err))
	}
}

func (r *Recorder) next() int {
	seq := r.seq
	r.seq++
	return seq
}

func prepareDB(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (run_id TEXT, seq INTEGER, bond INTEGER, trunc_err REAL, PRIMARY KEY (run_id, seq)) STRICT`, tableUpdates),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (run_id TEXT, seq INTEGER, bond INTEGER, iterations INTEGER, delta REAL, PRIMARY KEY (run_id, seq)) STRICT`, tableDisentangle),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (run_id TEXT, seq INTEGER, time REAL, bond_energy REAL, entropy REAL, PRIMARY KEY (run_id, seq)) STRICT`, tableEvolution),
	}
	for _, sqlStr := range stmts {
		if _, err := db.ExecContext(ctx, sqlStr); err != nil {
			return errors.Wrap(err, "")
		}
	}
	return nil
}
