package plancache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Key derives the cache key for one stream of a compiled query. model
// identifies the mapped model the query was compiled against; shape must
// describe everything else that affects the command text except parameter
// values.
func Key(model, shape, dialect string, stream int) string {
	parts := []string{model, dialect, strconv.Itoa(stream), shape}
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(hash[:16])
}
