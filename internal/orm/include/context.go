package include

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/relmap/internal/orm/sqlast"
)

// RootStream is the stream index of the root statement
const RootStream = 0

// CompilationContext carries state shared by every include path of one query
// compilation. It is not safe for concurrent use.
type CompilationContext struct {
	ID     uuid.UUID
	logger *zap.Logger

	streams  int
	nullable map[*sqlast.Table]bool
}

// NewCompilationContext creates a context. A nil logger disables logging.
func NewCompilationContext(logger *zap.Logger) *CompilationContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New()
	return &CompilationContext{
		ID:       id,
		logger:   logger.With(zap.String("compilation_id", id.String())),
		streams:  1,
		nullable: make(map[*sqlast.Table]bool),
	}
}

// Logger returns the compilation-scoped logger
func (cc *CompilationContext) Logger() *zap.Logger { return cc.logger }

// NextStream allocates a stream index for a new child statement
func (cc *CompilationContext) NextStream() int {
	idx := cc.streams
	cc.streams++
	return idx
}

// Streams returns the number of streams allocated, the root included
func (cc *CompilationContext) Streams() int { return cc.streams }

// markNullable records that rows of t may be absent because t was reached
// through an outer join
func (cc *CompilationContext) markNullable(t *sqlast.Table) { cc.nullable[t] = true }

func (cc *CompilationContext) isNullable(t *sqlast.Table) bool { return cc.nullable[t] }
