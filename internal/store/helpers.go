package store

import (
	"github.com/jmoiron/sqlx"
)

// sqlxInOn expands a query's sole "IN (?)" placeholder against args and
// rebinds it to the driver's bindvar style.
func (s *Store) sqlxInOn(query string, args ...any) (string, []any, error) {
	expanded, flatArgs, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return s.db.Rebind(expanded), flatArgs, nil
}
