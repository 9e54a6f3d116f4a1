package query

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/relmap/internal/orm/include"
	"github.com/conduit-lang/relmap/internal/orm/metadata"
	"github.com/conduit-lang/relmap/internal/orm/plancache"
	"github.com/conduit-lang/relmap/internal/orm/sqlast"
)

// Include is one planned include path
type Include struct {
	Path       []*metadata.Navigation
	Strategies []include.Strategy
}

// Compiled is a query ready to render and execute. Stream 0 reads the root
// statement; every collection strategy adds a stream of its own.
type Compiled struct {
	ID        uuid.UUID
	Entity    *metadata.Entity
	Source    *sqlast.QuerySource
	Statement *sqlast.Statement
	Includes  []Include

	shape  string
	model  string
	logger *zap.Logger
}

// Command is the rendered text of one stream
type Command struct {
	Stream int
	SQL    string
	Args   []any
	Cached bool
}

// Shape describes the query independently of parameter values
func (c *Compiled) Shape() string { return c.shape }

// Streams returns the statement of every stream indexed by stream number
func (c *Compiled) Streams() []*sqlast.Statement {
	streams := []*sqlast.Statement{c.Statement}
	for _, inc := range c.Includes {
		for _, st := range inc.Strategies {
			coll, ok := st.(*include.CollectionStrategy)
			if !ok {
				continue
			}
			for len(streams) <= coll.StreamIndex {
				streams = append(streams, nil)
			}
			streams[coll.StreamIndex] = coll.Statement
		}
	}
	return streams
}

// Collection returns the collection strategy that reads stream, or nil for
// the root stream
func (c *Compiled) Collection(stream int) *include.CollectionStrategy {
	for _, inc := range c.Includes {
		for _, st := range inc.Strategies {
			if coll, ok := st.(*include.CollectionStrategy); ok && coll.StreamIndex == stream {
				return coll
			}
		}
	}
	return nil
}

// Commands renders every stream. With a cache, command text is looked up by
// model fingerprint and query shape first and stored after rendering; arguments are always taken
// from this compilation. A failing cache is logged and bypassed.
func (c *Compiled) Commands(ctx context.Context, r *sqlast.Renderer, cache plancache.Cache) ([]Command, error) {
	logger := c.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	streams := c.Streams()
	commands := make([]Command, 0, len(streams))
	for stream, stmt := range streams {
		key := plancache.Key(c.model, c.shape, r.Dialect.String(), stream)
		if cache != nil {
			sql, err := cache.Get(ctx, key)
			switch {
			case err == nil:
				commands = append(commands, Command{Stream: stream, SQL: sql, Args: sqlast.Arguments(stmt), Cached: true})
				continue
			case !plancache.IsCacheMiss(err):
				logger.Warn("plan cache lookup failed", zap.String("key", key), zap.Error(err))
			}
		}

		sql, args, err := r.Render(stmt)
		if err != nil {
			return nil, err
		}
		if cache != nil {
			if err := cache.Set(ctx, key, sql); err != nil {
				logger.Warn("plan cache store failed", zap.String("key", key), zap.Error(err))
			}
		}
		commands = append(commands, Command{Stream: stream, SQL: sql, Args: args})
	}
	return commands, nil
}
