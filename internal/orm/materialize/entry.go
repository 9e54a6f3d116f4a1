package materialize

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/relmap/internal/orm/metadata"
)

// Entry is one materialized entity with the related entries attached to it.
// Entries are shared: the same entity key always yields the same *Entry
// within one execution.
type Entry struct {
	Entity      *metadata.Entity
	Values      map[string]any
	References  map[string]*Entry
	Collections map[string][]*Entry

	key     string
	members map[string]map[*Entry]bool
}

func newEntry(e *metadata.Entity, values map[string]any, key string) *Entry {
	return &Entry{
		Entity:      e,
		Values:      values,
		References:  make(map[string]*Entry),
		Collections: make(map[string][]*Entry),
		key:         key,
		members:     make(map[string]map[*Entry]bool),
	}
}

// Get returns a property value by name
func (e *Entry) Get(property string) any { return e.Values[property] }

// Reference returns the entry a to-one navigation points at
func (e *Entry) Reference(navigation string) *Entry { return e.References[navigation] }

// Collection returns the entries of a to-many navigation
func (e *Entry) Collection(navigation string) []*Entry { return e.Collections[navigation] }

// Key returns the identity of the entry, empty for entities without a primary key
func (e *Entry) Key() string { return e.key }

func (e *Entry) String() string {
	return fmt.Sprintf("%s(%s)", e.Entity.Name(), e.key)
}

func (e *Entry) ensureCollection(name string) {
	if _, ok := e.Collections[name]; !ok {
		e.Collections[name] = []*Entry{}
	}
}

// addToCollection appends child unless it is already a member
func (e *Entry) addToCollection(name string, child *Entry) {
	e.ensureCollection(name)
	set := e.members[name]
	if set == nil {
		set = make(map[*Entry]bool)
		e.members[name] = set
	}
	if set[child] {
		return
	}
	set[child] = true
	e.Collections[name] = append(e.Collections[name], child)
}

// attach links owner and target through nav. A to-one inverse is set on the
// target as well; to-many inverses are only filled by their own include.
func attach(owner *Entry, nav *metadata.Navigation, target *Entry) {
	if nav.IsCollection() {
		owner.addToCollection(nav.Name(), target)
	} else {
		owner.References[nav.Name()] = target
	}

	if inverse, ok := nav.Inverse(); ok && !inverse.IsCollection() {
		target.References[inverse.Name()] = owner
	}
}

// Map converts the entry graph to nested maps. An entry already being
// converted further up is written as its key to break cycles.
func (e *Entry) Map() map[string]any {
	return e.toMap(make(map[*Entry]bool))
}

func (e *Entry) toMap(inProgress map[*Entry]bool) map[string]any {
	out := make(map[string]any, len(e.Values)+len(e.References)+len(e.Collections))
	for k, v := range e.Values {
		out[k] = v
	}
	inProgress[e] = true
	defer delete(inProgress, e)

	for name, ref := range e.References {
		switch {
		case ref == nil:
			out[name] = nil
		case inProgress[ref]:
			out[name] = ref.String()
		default:
			out[name] = ref.toMap(inProgress)
		}
	}
	for name, children := range e.Collections {
		list := make([]any, 0, len(children))
		for _, c := range children {
			if inProgress[c] {
				list = append(list, c.String())
				continue
			}
			list = append(list, c.toMap(inProgress))
		}
		out[name] = list
	}
	return out
}

// identityMap resolves rows to shared entries by primary key
type identityMap struct {
	entries map[*metadata.Entity]map[string]*Entry
}

func newIdentityMap() *identityMap {
	return &identityMap{entries: make(map[*metadata.Entity]map[string]*Entry)}
}

// resolve returns the entry for values, the entity's columns in ordinal order.
// It returns nil when every value is NULL, the shape of an unmatched outer join.
func (m *identityMap) resolve(e *metadata.Entity, values []any) (entry *Entry, created bool) {
	props := e.Properties()
	allNull := true
	record := make(map[string]any, len(props))
	for i, p := range props {
		v := normalize(p, values[i])
		if v != nil {
			allNull = false
		}
		record[p.Name()] = v
	}
	if allNull {
		return nil, false
	}

	pk, ok := e.PrimaryKey()
	if !ok {
		return newEntry(e, record, ""), true
	}
	keyValues := make([]any, 0, len(pk.Properties()))
	for _, p := range pk.Properties() {
		keyValues = append(keyValues, record[p.Name()])
	}
	key := keyString(keyValues)

	byKey := m.entries[e]
	if byKey == nil {
		byKey = make(map[string]*Entry)
		m.entries[e] = byKey
	}
	if existing, ok := byKey[key]; ok {
		return existing, false
	}
	entry = newEntry(e, record, key)
	byKey[key] = entry
	return entry, true
}

// normalize turns driver byte slices of text-like kinds into strings
func normalize(p *metadata.Property, v any) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	switch p.Type().Kind {
	case metadata.KindString, metadata.KindText, metadata.KindUUID, metadata.KindDecimal:
		return string(b)
	default:
		return b
	}
}

func keyString(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		parts[i] = fmt.Sprintf("%v", v)
	}
	return strings.Join(parts, "\x1f")
}
