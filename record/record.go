// Package record persists the progress of sweep optimizations in SQLite.
package record

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/kbidzhiev/itensors/dmrg"
)

const (
	tableSteps  = "steps"
	tableSweeps = "sweeps"
)

// Step is the record of the optimization of one bond.
type Step struct {
	Sweep     int
	HalfSweep int
	Bond      int
	Energy    float64
	LinkDim   int
	TruncErr  float64
}

// Sweep is the record of a full sweep.
type Sweep struct {
	Sweep       int
	Energy      float64
	MaxLinkDim  int
	MaxTruncErr float64
	Elapsed     time.Duration
}

// Recorder is an observer that writes every step and sweep to a SQLite database, and defers decisions to an inner observer.
// Once a write fails, Recorder stops the optimization and reports the failure in Err.
type Recorder struct {
	Path  string
	inner dmrg.Observer
	db    *sql.DB
	err   error
}

// New creates a recorder writing to a fresh database at path.
// A nil inner observer never stops the optimization.
func New(path string, inner dmrg.Observer) (*Recorder, error) {
	if inner == nil {
		inner = dmrg.NoObserver{}
	}
	db, err := newDB(path)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return &Recorder{Path: path, inner: inner, db: db}, nil
}

func (r *Recorder) Measure(info dmrg.StepInfo) {
	r.inner.Measure(info)
	if r.err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`INSERT INTO %s (sweep, half_sweep, bond, energy, link_dim, trunc_err) VALUES (?, ?, ?, ?, ?, ?)`, tableSteps)
	args := []any{info.Sweep, info.HalfSweep, info.Bond, info.Energy, len(info.Spectrum.Eigs), info.Spectrum.TruncErr}
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		r.err = errors.Wrap(err, fmt.Sprintf("%s %#v", sqlStr, args))
	}
}

func (r *Recorder) CheckDone(info dmrg.SweepInfo) bool {
	done := r.inner.CheckDone(info)
	if r.err != nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`INSERT INTO %s (sweep, energy, max_link_dim, max_trunc_err, elapsed_ns) VALUES (?, ?, ?, ?, ?)`, tableSweeps)
	args := []any{info.Sweep, info.Energy, info.MaxLinkDim, info.MaxTruncErr, info.Elapsed.Nanoseconds()}
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		r.err = errors.Wrap(err, fmt.Sprintf("%s %#v", sqlStr, args))
		return true
	}
	return done
}

// Err returns the first failed write.
func (r *Recorder) Err() error { return r.err }

// Steps returns the recorded steps in the order they were taken.
func (r *Recorder) Steps() ([]Step, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT sweep, half_sweep, bond, energy, link_dim, trunc_err FROM %s ORDER BY id`, tableSteps)
	rows, err := r.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	steps := make([]Step, 0)
	for rows.Next() {
		var s Step
		if err := rows.Scan(&s.Sweep, &s.HalfSweep, &s.Bond, &s.Energy, &s.LinkDim, &s.TruncErr); err != nil {
			return nil, errors.Wrap(err, "")
		}
		steps = append(steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return steps, nil
}

// Sweeps returns the recorded sweeps in order.
func (r *Recorder) Sweeps() ([]Sweep, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT sweep, energy, max_link_dim, max_trunc_err, elapsed_ns FROM %s ORDER BY sweep`, tableSweeps)
	rows, err := r.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	sweeps := make([]Sweep, 0)
	for rows.Next() {
		var s Sweep
		var elapsed int64
		if err := rows.Scan(&s.Sweep, &s.Energy, &s.MaxLinkDim, &s.MaxTruncErr, &elapsed); err != nil {
			return nil, errors.Wrap(err, "")
		}
		s.Elapsed = time.Duration(elapsed)
		sweeps = append(sweeps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return sweeps, nil
}

func (r *Recorder) Close() error {
	if err := r.db.Close(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func newDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	if err := prepareDB(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}

	return db, nil
}

func prepareDB(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	stmts := []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tableSteps),
		fmt.Sprintf(`CREATE TABLE %s (id INTEGER PRIMARY KEY, sweep INTEGER, half_sweep INTEGER, bond INTEGER, energy REAL, link_dim INTEGER, trunc_err REAL) STRICT`, tableSteps),
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tableSweeps),
		fmt.Sprintf(`CREATE TABLE %s (sweep INTEGER PRIMARY KEY, energy REAL, max_link_dim INTEGER, max_trunc_err REAL, elapsed_ns INTEGER) STRICT`, tableSweeps),
	}
	for _, sqlStr := range stmts {
		if _, err := db.ExecContext(ctx, sqlStr); err != nil {
			return errors.Wrap(err, sqlStr)
		}
	}
	return nil
}
