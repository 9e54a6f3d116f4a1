package commands

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes a relmap.yml for a sqlite database in a temp dir and
// returns its path
func writeConfig(t *testing.T, dbPath string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relmap.yml")
	content := fmt.Sprintf(`model: testdata/shop.yml
dialect: sqlite
cache:
  backend: none
log:
  level: error
database:
  driver: sqlite3
  url: %s
`, dbPath)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--no-color"))
	err := cmd.Execute()
	return out.String(), err
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "relmap", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, expected := range []string{"version", "model", "plan", "exec", "ddl"} {
		assert.Contains(t, names, expected)
	}
}

func TestVersionCommand(t *testing.T) {
	Version = "1.0.0-test"
	GitCommit = "abc123"
	defer func() { Version, GitCommit = "dev", "unknown" }()

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "relmap version: 1.0.0-test")
	assert.Contains(t, out, "abc123")
}

func TestPlanCommand(t *testing.T) {
	cfg := writeConfig(t, filepath.Join(t.TempDir(), "unused.db"))
	out, err := run(t, "plan", "Customer", "--config", cfg, "-i", "Orders", "-w", "Name = ann")
	require.NoError(t, err)

	assert.Contains(t, out, "Customer: 2 stream(s), sqlite\n")
	assert.Contains(t, out, "stream 0 (root)\n"+
		`  SELECT "c"."id", "c"."name" FROM "customers" AS "c" WHERE "c"."name" = ? ORDER BY "c"."id" ASC`+"\n"+
		"  args: [ann]\n")
	assert.Contains(t, out, "stream 1 (Customer.Orders)\n"+
		`  SELECT "o"."id", "o"."customer_id", "o"."total" FROM "orders" AS "o" `+
		`INNER JOIN (SELECT DISTINCT "c"."id" FROM "customers" AS "c" WHERE "c"."name" = ?) AS "c0" `+
		`ON "o"."customer_id" = "c0"."id" ORDER BY "c0"."id" ASC`+"\n")
}

func TestPlanDialectFlag(t *testing.T) {
	cfg := writeConfig(t, "unused.db")
	out, err := run(t, "plan", "Order", "--config", cfg, "--dialect", "postgres", "-i", "Customer", "-w", "Id > 5")
	require.NoError(t, err)
	assert.Contains(t, out, `INNER JOIN "customers" AS "c"`)
	assert.Contains(t, out, `"o"."id" > $1`)
	assert.Contains(t, out, "args: [5]")
}

func TestPlanSuggestsNavigation(t *testing.T) {
	cfg := writeConfig(t, "unused.db")
	_, err := run(t, "plan", "Customer", "--config", cfg, "-i", "Ordrs")
	require.Error(t, err)

	var nf *notFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "navigation", nf.kind)
	assert.Equal(t, []string{"Orders"}, nf.candidates)

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetErr(&buf)
	printError(cmd, err, true)
	assert.Contains(t, buf.String(), "UNKNOWN NAVIGATION: Customer.Ordrs")
	assert.Contains(t, buf.String(), "Did you mean: Orders?")
}

func TestUnknownEntityAndConfigErrors(t *testing.T) {
	cfg := writeConfig(t, "unused.db")
	_, err := run(t, "plan", "Custmer", "--config", cfg)
	var nf *notFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "entity", nf.kind)

	_, err = run(t, "plan", "Customer", "--config", cfg, "--model", "testdata/missing.yml")
	var ce *configError
	assert.True(t, errors.As(err, &ce))

	_, err = run(t, "plan", "Customer", "--config", cfg, "--dialect", "oracle")
	assert.True(t, errors.As(err, &ce))
}

func TestModelCommand(t *testing.T) {
	cfg := writeConfig(t, "unused.db")
	out, err := run(t, "model", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "customers")
	assert.Contains(t, out, "Orders[Order]")
	assert.Contains(t, out, "Customer->Customer")

	out, err = run(t, "model", "Order", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Order (orders)")
	assert.Contains(t, out, "customer_id")
	assert.Contains(t, out, "Customer(Id)")
}

func TestDDLCommand(t *testing.T) {
	cfg := writeConfig(t, "unused.db")
	out, err := run(t, "ddl", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, `CREATE TABLE IF NOT EXISTS "orders" (`)
	assert.Contains(t, out, `"total" REAL NULL`)
	assert.Contains(t, out, `FOREIGN KEY ("customer_id") REFERENCES "customers" ("id")`)

	out, err = run(t, "ddl", "--config", cfg, "--drop")
	require.NoError(t, err)
	assert.Equal(t, "DROP TABLE IF EXISTS \"orders\";\nDROP TABLE IF EXISTS \"customers\";\n", out)
}

func TestExecCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "shop.db")
	cfg := writeConfig(t, dbPath)
	ddl, err := run(t, "ddl", "--config", cfg)
	require.NoError(t, err)

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(ddl + `
INSERT INTO customers VALUES (1, 'ann'), (2, 'bob');
INSERT INTO orders VALUES (10, 1, 9.5), (11, 1, NULL), (12, 2, 3);
`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, err := run(t, "exec", "Customer", "--config", cfg, "-i", "Orders", "-w", "Id = 1")
	require.NoError(t, err)

	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "ann", entries[0]["Name"])
	orders, ok := entries[0]["Orders"].([]any)
	require.True(t, ok)
	require.Len(t, orders, 2)
	byID := make(map[float64]map[string]any)
	for _, o := range orders {
		m := o.(map[string]any)
		byID[m["Id"].(float64)] = m
	}
	assert.Equal(t, 9.5, byID[10]["Total"])
	assert.Equal(t, "Customer(1)", byID[10]["Customer"], "back reference to the owner")
	assert.Contains(t, byID[11], "Total")
	assert.Nil(t, byID[11]["Total"])

	out, err = run(t, "exec", "Order", "--config", cfg, "-i", "Customer", "-o", "Id:desc", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "- Customer:\n")
	assert.Contains(t, out, "Name: bob")
}

func TestExecRequiresDatabaseURL(t *testing.T) {
	cfg := writeConfig(t, `""`)
	_, err := run(t, "exec", "Customer", "--config", cfg)
	var ce *configError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, err.Error(), "database.url")

	_, err = run(t, "exec", "Customer", "--config", cfg, "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")
}
