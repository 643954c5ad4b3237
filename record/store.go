package record

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// TblRuns holds one row per search run.
const TblRuns = "psoruns"

var ErrDims = errors.New("row dimension does not match store")

// Store keeps rows in a sql database opened with a sqlite3 driver.  Every
// solution coordinate gets its own REAL column x1..xD so D is fixed per
// store.
type Store struct {
	db   *sql.DB
	ndim int
}

// NewStore creates the runs table for ndim dimensional solutions if it does
// not already exist.
func NewStore(db *sql.DB, ndim int) (*Store, error) {
	s := &Store{db: db, ndim: ndim}
	q := "CREATE TABLE IF NOT EXISTS " + TblRuns + " (problem TEXT, mode TEXT, workers INTEGER, elapsed REAL, score REAL, particles INTEGER, inertia REAL, cognition REAL, social REAL"
	q += s.xdbsql("define")
	q += ");"
	if _, err := db.Exec(q); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) xdbsql(op string) string {
	var b strings.Builder
	for i := 1; i <= s.ndim; i++ {
		switch op {
		case "?":
			b.WriteString(",?")
		case "define":
			fmt.Fprintf(&b, ",x%v REAL", i)
		case "x":
			fmt.Fprintf(&b, ",x%v", i)
		default:
			panic("invalid db op " + op)
		}
	}
	return b.String()
}

// Insert adds rows tagged with the problem name and search mode in a single
// transaction.
func (s *Store) Insert(problem, mode string, rows ...Row) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	q := "INSERT INTO " + TblRuns + " VALUES (?,?,?,?,?,?,?,?,?" + s.xdbsql("?") + ");"
	stmt, err := tx.Prepare(q)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if len(r.Pos) != s.ndim {
			return fmt.Errorf("%w: got %v, want %v", ErrDims, len(r.Pos), s.ndim)
		}
		args := []interface{}{problem, mode, r.Workers, r.Elapsed, r.Score,
			r.Combo.Particles, r.Combo.Inertia, r.Combo.Cognition, r.Combo.Social}
		for _, x := range r.Pos {
			args = append(args, x)
		}
		if _, err := stmt.Exec(args...); err != nil {
			return err
		}
	}
	return nil
}

// Rows returns the stored rows for problem in insertion order.
func (s *Store) Rows(problem string) ([]Row, error) {
	q := "SELECT workers, elapsed, score, particles, inertia, cognition, social" + s.xdbsql("x") +
		" FROM " + TblRuns + " WHERE problem = ? ORDER BY rowid;"
	rs, err := s.db.Query(q, problem)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var rows []Row
	for rs.Next() {
		r := Row{Pos: make([]float64, s.ndim)}
		dst := []interface{}{&r.Workers, &r.Elapsed, &r.Score,
			&r.Combo.Particles, &r.Combo.Inertia, &r.Combo.Cognition, &r.Combo.Social}
		for i := range r.Pos {
			dst = append(dst, &r.Pos[i])
		}
		if err := rs.Scan(dst...); err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
	return rows, rs.Err()
}
