// Package relationships finds existing foreign keys that are compatible with a
// requested relationship shape.
package relationships

import (
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/relmap/internal/orm/metadata"
)

// Request describes the relationship a caller wants to configure between a
// dependent and a principal entity. Empty names and empty property lists mean
// "not supplied".
type Request struct {
	Dependent *metadata.Entity
	Principal *metadata.Entity

	NavigationToPrincipal string
	NavigationToDependent string

	ForeignKeyProperties []*metadata.Property
	PrincipalProperties  []*metadata.Property

	// IsUnique is nil when uniqueness is not constrained
	IsUnique *bool

	// Ignore lists dependent properties the naming heuristics must skip
	Ignore []*metadata.Property
}

// Finder matches requests against the foreign keys already in a model
type Finder struct {
	logger *zap.Logger
}

// NewFinder creates a finder. A nil logger disables logging.
func NewFinder(logger *zap.Logger) *Finder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finder{logger: logger}
}

var defaultFinder = NewFinder(nil)

// TryFindForeignKey returns the first foreign key on req.Dependent compatible
// with req, using a finder that does not log
func TryFindForeignKey(req Request) (*metadata.ForeignKey, bool) {
	return defaultFinder.TryFindForeignKey(req)
}

// TryFindForeignKey returns the first foreign key declared on req.Dependent that
// is compatible with req. No match is a normal outcome, not an error.
func (f *Finder) TryFindForeignKey(req Request) (*metadata.ForeignKey, bool) {
	if req.Dependent == nil || req.Principal == nil {
		return nil, false
	}

	explicit := len(req.ForeignKeyProperties) > 0
	fkProps := req.ForeignKeyProperties
	if !explicit {
		implied, ok := f.ImpliedForeignKeyProperties(req)
		if !ok {
			return nil, false
		}
		fkProps = implied
	}

	for _, fk := range req.Dependent.ForeignKeys() {
		if f.compatible(fk, req, fkProps, explicit) {
			return fk, true
		}
	}
	return nil, false
}

func (f *Finder) compatible(fk *metadata.ForeignKey, req Request, fkProps []*metadata.Property, explicit bool) bool {
	if fk.PrincipalEntity() != req.Principal {
		return false
	}
	if !metadata.SameProperties(fk.Properties(), fkProps) {
		return false
	}

	key := fk.PrincipalKey()
	switch {
	case len(req.PrincipalProperties) > 0:
		if !metadata.SameProperties(key.Properties(), req.PrincipalProperties) {
			return false
		}
	case !explicit:
		// implied properties were typed against the primary key
		if !key.IsPrimary() {
			return false
		}
	}

	if req.NavigationToPrincipal != "" {
		if nav, ok := fk.NavigationToPrincipal(); ok && nav.Name() != req.NavigationToPrincipal {
			return false
		}
	}
	if req.NavigationToDependent != "" {
		if nav, ok := fk.NavigationToDependent(); ok && nav.Name() != req.NavigationToDependent {
			return false
		}
	}

	if req.IsUnique != nil && *req.IsUnique != fk.IsUnique() {
		return false
	}
	return true
}

// ImpliedForeignKeyProperties probes the dependent for a property named after
// the navigation or the principal, in this order:
//
//	<NavigationToPrincipal>Id
//	<NavigationToPrincipal><PrimaryKeyProperty>
//	<Principal>Id
//	<Principal><PrimaryKeyProperty>
//
// Names match case-insensitively and the property kind must be compatible with
// the principal's single-property primary key. When patterns resolve to
// different properties the first wins and a warning is logged.
func (f *Finder) ImpliedForeignKeyProperties(req Request) ([]*metadata.Property, bool) {
	pk, ok := req.Principal.PrimaryKey()
	if !ok {
		return nil, false
	}
	pkProps := pk.Properties()
	if len(pkProps) != 1 {
		return nil, false
	}
	pkProp := pkProps[0]

	var found *metadata.Property
	var foundName string
	for _, name := range candidateNames(req.NavigationToPrincipal, req.Principal.Name(), pkProp.Name()) {
		p, ok := req.Dependent.FindPropertyFold(name)
		if !ok || !metadata.Compatible(p.Type(), pkProp.Type()) || ignored(req.Ignore, p) {
			continue
		}
		if found == nil {
			found, foundName = p, name
			continue
		}
		if p != found {
			f.logger.Warn("ambiguous foreign key naming",
				zap.String("dependent", req.Dependent.Name()),
				zap.String("principal", req.Principal.Name()),
				zap.String("chosen", found.Name()),
				zap.String("pattern", foundName),
				zap.String("also_matched", p.Name()),
				zap.String("also_pattern", name))
		}
	}
	if found == nil {
		return nil, false
	}
	return []*metadata.Property{found}, true
}

func ignored(props []*metadata.Property, p *metadata.Property) bool {
	for _, q := range props {
		if q == p {
			return true
		}
	}
	return false
}

func candidateNames(navigation, principal, pkName string) []string {
	names := make([]string, 0, 4)
	if navigation != "" {
		names = append(names, navigation+"Id", navigation+pkName)
	}
	names = append(names, principal+"Id", principal+pkName)
	return dedupFold(names)
}

func dedupFold(names []string) []string {
	out := names[:0]
	for _, n := range names {
		dup := false
		for _, seen := range out {
			if strings.EqualFold(seen, n) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, n)
		}
	}
	return out
}
