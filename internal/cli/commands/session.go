package commands

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/relmap/internal/cli/config"
	"github.com/conduit-lang/relmap/internal/logging"
	"github.com/conduit-lang/relmap/internal/orm/metadata"
	"github.com/conduit-lang/relmap/internal/orm/modelfile"
	"github.com/conduit-lang/relmap/internal/orm/sqlast"
)

// globalOptions are the persistent flags shared by every subcommand
type globalOptions struct {
	configPath string
	modelPath  string
	dialect    string
	noColor    bool
	verbose    bool
}

// session is the loaded state a subcommand works against
type session struct {
	cfg      *config.Config
	logger   *zap.Logger
	model    *metadata.Model
	renderer *sqlast.Renderer
	noColor  bool
}

// configError marks failures the user fixes in relmap.yml or the model file
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// notFoundError reports an unknown name together with the names that exist
type notFoundError struct {
	kind       string
	name       string
	candidates []string
}

func (e *notFoundError) Error() string { return fmt.Sprintf("unknown %s: %s", e.kind, e.name) }

func (o *globalOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, &configError{err}
	}

	if o.modelPath != "" {
		cfg.Model = o.modelPath
	}
	if o.dialect != "" {
		cfg.Dialect = o.dialect
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// open loads config, logger, model and renderer
func (o *globalOptions) open() (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, &configError{err}
	}

	dialect, err := sqlast.ParseDialect(cfg.Dialect)
	if err != nil {
		return nil, &configError{err}
	}

	model, err := modelfile.Load(cfg.Model, modelfile.Options{Naming: cfg.Naming, Logger: logger})
	if err != nil {
		return nil, &configError{fmt.Errorf("load model: %w", err)}
	}

	logger.Debug("session opened",
		zap.String("config", config.Used()),
		zap.String("model", cfg.Model),
		zap.Stringer("dialect", dialect),
	)
	return &session{
		cfg:      cfg,
		logger:   logger,
		model:    model,
		renderer: sqlast.NewRenderer(dialect),
		noColor:  o.noColor,
	}, nil
}

func (s *session) close() {
	_ = s.logger.Sync()
}

// entity resolves a root entity name, suggesting close names on a miss
func (s *session) entity(name string) (*metadata.Entity, error) {
	if e, ok := s.model.Entity(name); ok {
		return e, nil
	}
	var names []string
	for _, e := range s.model.Entities() {
		names = append(names, e.Name())
	}
	return nil, &notFoundError{kind: "entity", name: name, candidates: names}
}
