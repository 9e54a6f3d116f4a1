package modelfile

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/relmap/internal/orm/conventions"
	"github.com/conduit-lang/relmap/internal/orm/metadata"
)

// Options controls how a File becomes a model
type Options struct {
	// Naming overrides the file's naming strategy when set
	Naming string
	// Dispatcher defaults to conventions.NewDefaultDispatcher()
	Dispatcher *conventions.Dispatcher
	Logger     *zap.Logger
}

// Build registers every entity and relationship of f and returns the frozen model
func (f *File) Build(opts Options) (*metadata.Model, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = conventions.NewDefaultDispatcher()
	}

	name := f.Naming
	if opts.Naming != "" {
		name = opts.Naming
	}
	naming, err := metadata.ParseNaming(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModelFile, err)
	}

	mb := conventions.NewModelBuilder(metadata.NewModel(metadata.WithNaming(naming)), dispatcher, logger)
	for _, e := range f.Entities {
		def, err := e.definition()
		if err != nil {
			return nil, err
		}
		eb, err := mb.Entity(def)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", e.Name, err)
		}
		if eb == nil {
			logger.Info("entity vetoed by convention", zap.String("entity", e.Name))
		}
	}

	for _, r := range f.Relationships {
		if _, err := mb.Relationship(r.spec()); err != nil {
			return nil, fmt.Errorf("relationship %s -> %s: %w", r.Dependent, r.Principal, err)
		}
	}

	model, err := mb.Build()
	if err != nil {
		return nil, err
	}
	logger.Debug("model loaded",
		zap.Int("entities", len(model.Entities())),
		zap.String("naming", name),
	)
	return model, nil
}

// Load reads the model file at path and builds it
func Load(path string, opts Options) (*metadata.Model, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return f.Build(opts)
}

func (e Entity) definition() (conventions.EntityDefinition, error) {
	def := conventions.EntityDefinition{
		Name:          e.Name,
		Table:         e.Table,
		Schema:        e.Schema,
		Key:           e.Key,
		AlternateKeys: e.AlternateKeys,
	}
	for _, p := range e.Properties {
		vt, err := metadata.ParseValueType(p.Type)
		if err != nil {
			return def, fmt.Errorf("%w: %s.%s: %v", ErrInvalidModelFile, e.Name, p.Name, err)
		}
		def.Properties = append(def.Properties, conventions.PropertyDefinition{
			Name:   p.Name,
			Type:   vt,
			Column: p.Column,
			Shadow: p.Shadow,
		})
	}
	for _, n := range e.Navigations {
		def.Navigations = append(def.Navigations, conventions.NavigationHint{
			Name:         n.Name,
			Target:       n.Target,
			Collection:   n.Collection,
			Inverse:      n.Inverse,
			ForeignKey:   n.ForeignKey,
			PrincipalKey: n.PrincipalKey,
			Unique:       n.Unique,
			Required:     n.Required,
		})
	}
	return def, nil
}

func (r Relationship) spec() conventions.RelationshipSpec {
	return conventions.RelationshipSpec{
		Dependent:             r.Dependent,
		Principal:             r.Principal,
		NavigationToPrincipal: r.ToPrincipal,
		NavigationToDependent: r.ToDependent,
		ForeignKey:            r.ForeignKey,
		PrincipalKey:          r.PrincipalKey,
		Unique:                r.Unique,
		Required:              r.Required,
	}
}
