// Package delta implements the byte-level delta codec: a heuristic LZ-style
// encoder/decoder pair operating on COPY/INSERT operations, plus the content
// digest used to name objects in the store.
package delta

import (
	"github.com/opencontainers/go-digest"
)

// Digest returns the lowercase hex content digest of data.
func Digest(data []byte) string {
	return digest.FromBytes(data).Encoded()
}
