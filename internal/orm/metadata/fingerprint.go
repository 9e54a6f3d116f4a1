package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Fingerprint identifies the mapped shape of the model: tables, schemas,
// columns and their types, keys, foreign keys and navigations. Two models
// that would render any query differently have different fingerprints.
// A frozen model computes it once.
func (m *Model) Fingerprint() string {
	if m.frozen && m.fingerprint != "" {
		return m.fingerprint
	}
	return m.computeFingerprint()
}

func (m *Model) computeFingerprint() string {
	h := sha256.New()
	for _, e := range m.Entities() {
		fmt.Fprintf(h, "entity %s %s.%s\n", e.name, e.Schema(), e.TableName())
		for _, p := range e.Properties() {
			fmt.Fprintf(h, " prop %s %s %s\n", p.Name(), p.ColumnName(), p.Type())
		}
		for _, k := range e.Keys() {
			fmt.Fprintf(h, " key %t %s\n", k.IsPrimary(), columns(k.Properties()))
		}
		for _, fk := range e.ForeignKeys() {
			fmt.Fprintf(h, " fk %s -> %s(%s) required=%t unique=%t\n", columns(fk.Properties()),
				fk.PrincipalEntity().name, columns(fk.PrincipalKey().Properties()), fk.IsRequired(), fk.IsUnique())
		}
		for _, n := range e.Navigations() {
			fmt.Fprintf(h, " nav %s %s principal=%t\n", n.name, n.ForeignKey(), n.PointsToPrincipal())
		}
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

func columns(props []*Property) string {
	cols := make([]string, len(props))
	for i, p := range props {
		cols[i] = p.ColumnName()
	}
	return strings.Join(cols, ",")
}
