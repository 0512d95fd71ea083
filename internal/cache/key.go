package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// LinkKey builds the cache key of a link. scope identifies the route
// table owner and generation changes whenever the table does, so stale
// links are never read back from a shared cache.
func LinkKey(scope string, generation uint64, identity string, params map[string]string) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(identity)
	for _, name := range names {
		b.WriteByte('\x00')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(params[name])
	}

	return "link:" + scope + ":" + strconv.FormatUint(generation, 10) + ":" + HashKey(b.String())
}

// HashKey hashes a key to a fixed length.
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
