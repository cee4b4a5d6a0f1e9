// Package mapper provides helpers for turning *sql.Rows into values inside
// query command mappers. They are plain data-shaping utilities with no
// coordination logic
package mapper

import (
	"database/sql"
)

// First maps the first row through fn. found is false when the result set
// is empty, so callers never have to interpret a nil sentinel
func First[T any](rows *sql.Rows, fn func(*sql.Rows) (T, error)) (value T, found bool, err error) {
	if !rows.Next() {
		return value, false, rows.Err()
	}
	value, err = fn(rows)
	return value, err == nil, err
}

// All maps every row through fn and collects the results in row order
func All[T any](rows *sql.Rows, fn func(*sql.Rows) (T, error)) ([]T, error) {
	results := make([]T, 0)
	for rows.Next() {
		value, err := fn(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, value)
	}
	return results, rows.Err()
}

// ToMap maps the first row into a column-name-keyed map. Returns an empty
// map when the result set is empty
func ToMap(rows *sql.Rows) (map[string]interface{}, error) {
	if !rows.Next() {
		return map[string]interface{}{}, rows.Err()
	}
	return scanRow(rows)
}

// ToMaps maps every row into a column-name-keyed map
func ToMaps(rows *sql.Rows) ([]map[string]interface{}, error) {
	results := make([]map[string]interface{}, 0)
	for rows.Next() {
		m, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

func scanRow(rows *sql.Rows) (map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	m := make(map[string]interface{}, len(columns))
	for i, name := range columns {
		m[name] = values[i]
	}
	return m, nil
}
