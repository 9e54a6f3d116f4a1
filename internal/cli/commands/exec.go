package commands

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/relmap/internal/orm/materialize"
	"github.com/conduit-lang/relmap/internal/orm/plancache"
)

func newExecCommand(opts *globalOptions) *cobra.Command {
	qf := &queryFlags{}
	var (
		format  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "exec <Entity>",
		Short: "Run an include query against the configured database",
		Long: `Compile a query, run all of its streams against database.url with
database.driver (pgx, postgres or sqlite3) and print the assembled entries.`,
		Example: `  relmap exec Customer -i Orders.OrderItems -w "Id <= 3" --format yaml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unknown format %q: want json or yaml", format)
			}
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.close()

			compiled, err := qf.compile(s, args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			db, err := openDatabase(ctx, s)
			if err != nil {
				return err
			}
			defer db.Close()

			cache, err := openCache(ctx, s)
			if err != nil {
				return err
			}
			if cache != nil {
				defer cache.Close()
			}

			entries, err := materialize.NewExecutor(s.renderer, cache, s.logger).Execute(ctx, db, compiled)
			if err != nil {
				if materialize.IsCanceled(err) {
					return fmt.Errorf("query canceled: %w", err)
				}
				return err
			}
			return writeEntries(cmd.OutOrStdout(), format, entries)
		},
	}
	qf.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the query after this long (0 means no limit)")
	return cmd
}

func openDatabase(ctx context.Context, s *session) (*sql.DB, error) {
	if s.cfg.Database.URL == "" {
		return nil, &configError{fmt.Errorf("database.url is not set")}
	}
	db, err := sql.Open(s.cfg.Database.Driver, s.cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.cfg.Database.Driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s: %w", s.cfg.Database.Driver, err)
	}
	return db, nil
}

// openCache returns nil when caching is off. An unreachable redis is logged
// and the query runs uncached.
func openCache(ctx context.Context, s *session) (plancache.Cache, error) {
	c := s.cfg.Cache
	cache, err := plancache.Open(ctx, c.Backend, plancache.RedisConfig{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		Cache:    plancache.Config{TTL: c.TTL, Prefix: c.Prefix},
	})
	if err != nil {
		if c.Backend == plancache.BackendRedis {
			s.logger.Warn("plan cache unavailable", zap.String("addr", c.Addr), zap.Error(err))
			return nil, nil
		}
		return nil, &configError{err}
	}
	return cache, nil
}

func writeEntries(w io.Writer, format string, entries []*materialize.Entry) error {
	out := make([]map[string]any, len(entries))
	for i, e := range entries {
		out[i] = e.Map()
	}

	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
