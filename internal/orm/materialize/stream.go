package materialize

import (
	"context"
	"database/sql"
)

// rowStream reads one command's rows with one row of lookahead
type rowStream struct {
	rows   *sql.Rows
	width  int
	peeked []any
	done   bool
	read   int
}

func newRowStream(rows *sql.Rows) (*rowStream, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	return &rowStream{rows: rows, width: len(cols)}, nil
}

// peek returns the next row without consuming it, or nil at the end
func (s *rowStream) peek(ctx context.Context) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.peeked != nil || s.done {
		return s.peeked, nil
	}
	if !s.rows.Next() {
		s.done = true
		return nil, s.rows.Err()
	}

	values := make([]any, s.width)
	ptrs := make([]any, s.width)
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	s.peeked = values
	return values, nil
}

// next consumes and returns the next row, or nil at the end
func (s *rowStream) next(ctx context.Context) ([]any, error) {
	row, err := s.peek(ctx)
	if err != nil || row == nil {
		return nil, err
	}
	s.advance()
	return row, nil
}

func (s *rowStream) advance() {
	s.peeked = nil
	s.read++
}

// pending reports whether rows remain unread
func (s *rowStream) pending(ctx context.Context) bool {
	row, err := s.peek(ctx)
	return err == nil && row != nil
}

func (s *rowStream) Close() error {
	return s.rows.Close()
}
