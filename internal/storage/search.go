package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyQuery is returned when a search query has no terms
var ErrEmptyQuery = errors.New("empty search query")

const defaultSearchLimit = 10

// searchLinesWithQuerier performs BM25 full-text search using FTS5
func (s *SQLiteStorage) searchLinesWithQuerier(ctx context.Context, q querier, query string, limit int, filters *SearchFilters) ([]*SearchResult, error) {
	// Sanitize query for FTS5
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	// bm25() needs the FTS table in the FROM clause
	sqlQuery := `
		SELECT ` + lineColumns + `, st.name, bm25(lines_fts) AS score
		FROM lines_fts
		INNER JOIN lines l ON l.id = lines_fts.rowid
		INNER JOIN streams st ON st.id = l.stream_id
		WHERE lines_fts MATCH ?
	`
	args := []interface{}{sanitized}

	// Apply filters
	sqlQuery, args = applyLineFilters(sqlQuery, args, filters)

	// Order by BM25 score (lower is better) and limit
	sqlQuery += " ORDER BY score, l.stream_id, l.line_number LIMIT ?"
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]*SearchResult, 0)
	for rows.Next() {
		var row lineRow
		var result SearchResult
		if err := rows.Scan(row.dest(&result.StreamName, &result.BM25Score)...); err != nil {
			return nil, err
		}
		result.Line = row.result()
		results = append(results, &result)
	}
	return results, rows.Err()
}

func (s *SQLiteStorage) SearchLines(ctx context.Context, query string, limit int, filters *SearchFilters) ([]*SearchResult, error) {
	return s.searchLinesWithQuerier(ctx, s.querier(), query, limit, filters)
}

func (t *sqliteTx) SearchLines(ctx context.Context, query string, limit int, filters *SearchFilters) ([]*SearchResult, error) {
	return t.storage.searchLinesWithQuerier(ctx, t.querier(), query, limit, filters)
}

// applyLineFilters adds WHERE clause filters for line search
func applyLineFilters(query string, args []interface{}, filters *SearchFilters) (string, []interface{}) {
	if filters == nil {
		return query, args
	}

	if len(filters.StreamIDs) > 0 {
		query += " AND l.stream_id IN ("
		for i, id := range filters.StreamIDs {
			if i > 0 {
				query += ","
			}
			query += "?"
			args = append(args, id)
		}
		query += ")"
	}

	if filters.NamePattern != "" {
		query += " AND st.name LIKE ?"
		args = append(args, filters.NamePattern)
	}

	if filters.UnterminatedOnly {
		query += " AND l.terminated = 0"
	}

	return query, args
}

// sanitizeFTSQuery turns free text into an FTS5 query of quoted terms.
// Every term becomes a string literal, so operators (AND, OR, NOT, NEAR),
// column filters, wildcards and grouping are matched as plain text.
// Terms are implicitly ANDed.
func sanitizeFTSQuery(query string) string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}
