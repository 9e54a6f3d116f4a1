package include

import (
	"github.com/conduit-lang/relmap/internal/orm/metadata"
	"github.com/conduit-lang/relmap/internal/orm/sqlast"
)

// Strategy tells the materializer how to attach the entities of one include
// step. It is either a *ReferenceStrategy or a *CollectionStrategy.
type Strategy interface {
	Step() *metadata.Navigation
	strategy()
}

// ReferenceStrategy reads a to-one target from the same row as its source.
// The target's columns start at ReaderOffset of stream StreamIndex.
type ReferenceStrategy struct {
	Navigation   *metadata.Navigation
	StreamIndex  int
	ReaderOffset int
	Table        *sqlast.Table
}

func (*ReferenceStrategy) strategy() {}

// Step returns the navigation the strategy loads
func (s *ReferenceStrategy) Step() *metadata.Navigation { return s.Navigation }

// CollectionStrategy loads a to-many target from its own stream. Rows of
// StreamIndex are ordered consistently with rows of ParentStream, so children
// are paired with parents by a merge on ParentKey and ChildKey.
type CollectionStrategy struct {
	Navigation   *metadata.Navigation
	StreamIndex  int
	ParentStream int
	Statement    *sqlast.Statement

	// ParentKey reads the principal key from a ParentStream row
	ParentKey KeyExtractor
	// ChildKey reads the foreign key from a StreamIndex row
	ChildKey KeyExtractor
	// EntityOffset is where the target's columns start in a StreamIndex row
	EntityOffset int
}

func (*CollectionStrategy) strategy() {}

// Step returns the navigation the strategy loads
func (s *CollectionStrategy) Step() *metadata.Navigation { return s.Navigation }

// KeyExtractor reads key values from a row by position
type KeyExtractor struct {
	Offsets []int
}

// Extract returns the key values at the extractor's offsets. ok is false when
// any value is NULL or out of range.
func (k KeyExtractor) Extract(row []any) (key []any, ok bool) {
	key = make([]any, len(k.Offsets))
	for i, off := range k.Offsets {
		if off < 0 || off >= len(row) || row[off] == nil {
			return nil, false
		}
		key[i] = row[off]
	}
	return key, true
}
