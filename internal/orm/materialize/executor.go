// Package materialize executes a compiled query and assembles entries from
// its row streams
package materialize

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/relmap/internal/orm/include"
	"github.com/conduit-lang/relmap/internal/orm/plancache"
	"github.com/conduit-lang/relmap/internal/orm/query"
	"github.com/conduit-lang/relmap/internal/orm/sqlast"
)

// Querier is an interface for executing SQL queries, allowing for testing and instrumentation.
// Every stream of a query is open at the same time, so implementations must
// allow several active result sets: use a pool such as *sql.DB rather than a
// single-connection *sql.Tx on drivers that cannot interleave results.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Executor runs compiled queries
type Executor struct {
	renderer *sqlast.Renderer
	cache    plancache.Cache
	logger   *zap.Logger
}

// NewExecutor creates an executor. cache may be nil.
func NewExecutor(renderer *sqlast.Renderer, cache plancache.Cache, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		renderer: renderer,
		cache:    cache,
		logger:   logger,
	}
}

// Execute runs every stream of q and returns the root entries in row order,
// each appearing once, with their includes attached. Streams are closed on
// every return path.
func (x *Executor) Execute(ctx context.Context, db Querier, q *query.Compiled) (entries []*Entry, err error) {
	commands, err := q.Commands(ctx, x.renderer, x.cache)
	if err != nil {
		return nil, err
	}

	streams := make([]*rowStream, len(commands))
	defer func() {
		for _, s := range streams {
			if s == nil {
				continue
			}
			if cerr := s.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}()

	for _, cmd := range commands {
		rows, err := db.QueryContext(ctx, cmd.SQL, cmd.Args...)
		if err != nil {
			return nil, fmt.Errorf("stream %d: %w", cmd.Stream, err)
		}
		s, err := newRowStream(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("stream %d: %w", cmd.Stream, err)
		}
		streams[cmd.Stream] = s
	}

	m := &merger{
		ctx:      ctx,
		streams:  streams,
		identity: newIdentityMap(),
	}
	root := streams[include.RootStream]
	width := len(q.Entity.Properties())
	seen := make(map[*Entry]bool)
	for {
		row, err := root.next(ctx)
		if err != nil {
			return nil, err
		}
		if row == nil {
			break
		}
		if len(row) < width {
			return nil, fmt.Errorf("%w: root has %d columns, need %d", ErrShortRow, len(row), width)
		}

		// a child stream may already have resolved this entity, so root
		// membership is tracked apart from the identity map
		entry, _ := m.identity.resolve(q.Entity, row[:width])
		if entry == nil {
			continue
		}
		if !seen[entry] {
			seen[entry] = true
			entries = append(entries, entry)
		}
		for _, inc := range q.Includes {
			if err := m.apply(inc.Strategies, entry, row, entry, row); err != nil {
				return nil, err
			}
		}
	}

	for i, s := range streams[1:] {
		if s != nil && s.pending(ctx) {
			x.logger.Warn("child rows left unmatched",
				zap.String("compilation_id", q.ID.String()),
				zap.Int("stream", i+1),
			)
		}
	}
	x.logger.Debug("query executed",
		zap.String("compilation_id", q.ID.String()),
		zap.String("entity", q.Entity.Name()),
		zap.Int("entries", len(entries)),
		zap.Int("root_rows", root.read),
	)
	return entries, nil
}

// merger pairs child stream rows with their parents
type merger struct {
	ctx      context.Context
	streams  []*rowStream
	identity *identityMap
}

// apply runs the remaining strategies of one include path for owner, which
// was read from row. A step declared on the root entity rather than on owner
// runs for root, read from rootRow; root is nil below a collection.
func (m *merger) apply(steps []include.Strategy, owner *Entry, row []any, root *Entry, rootRow []any) error {
	if len(steps) == 0 {
		return nil
	}
	declaring := steps[0].Step().DeclaringEntity()
	if root != nil && root.Entity == declaring && (owner == nil || owner.Entity != declaring) {
		owner, row = root, rootRow
	}
	if owner == nil {
		return nil
	}

	switch s := steps[0].(type) {
	case *include.ReferenceStrategy:
		target := s.Navigation.TargetEntity()
		values, err := window(row, s.ReaderOffset, len(target.Properties()))
		if err != nil {
			return fmt.Errorf("include %s: %w", s.Navigation, err)
		}
		ref, _ := m.identity.resolve(target, values)
		if ref == nil {
			owner.References[s.Navigation.Name()] = nil
		} else {
			attach(owner, s.Navigation, ref)
		}
		return m.apply(steps[1:], ref, row, root, rootRow)

	case *include.CollectionStrategy:
		return m.collection(s, steps[1:], owner, row)

	default:
		return fmt.Errorf("unsupported strategy %T", s)
	}
}

// collection consumes the child rows whose key matches the parent row. Child
// rows arrive in parent order, so the matching rows are the next ones.
func (m *merger) collection(s *include.CollectionStrategy, rest []include.Strategy, owner *Entry, row []any) error {
	owner.ensureCollection(s.Navigation.Name())
	parentKey, ok := s.ParentKey.Extract(row)
	if !ok {
		return nil
	}
	want := keyString(parentKey)

	if s.StreamIndex >= len(m.streams) || m.streams[s.StreamIndex] == nil {
		return fmt.Errorf("%w: %d", ErrMissingStream, s.StreamIndex)
	}
	stream := m.streams[s.StreamIndex]
	target := s.Navigation.TargetEntity()
	width := len(target.Properties())

	for {
		childRow, err := stream.peek(m.ctx)
		if err != nil {
			return err
		}
		if childRow == nil {
			return nil
		}
		childKey, ok := s.ChildKey.Extract(childRow)
		if !ok || keyString(childKey) != want {
			return nil
		}
		stream.advance()

		values, err := window(childRow, s.EntityOffset, width)
		if err != nil {
			return fmt.Errorf("include %s: %w", s.Navigation, err)
		}
		child, _ := m.identity.resolve(target, values)
		if child == nil {
			continue
		}
		attach(owner, s.Navigation, child)
		if err := m.apply(rest, child, childRow, nil, nil); err != nil {
			return err
		}
	}
}

func window(row []any, offset, width int) ([]any, error) {
	if offset < 0 || offset+width > len(row) {
		return nil, fmt.Errorf("%w: %d columns, need %d", ErrShortRow, len(row), offset+width)
	}
	return row[offset : offset+width], nil
}

// IsCanceled reports whether err came from a canceled or expired context
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
