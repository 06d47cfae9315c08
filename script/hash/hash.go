package hash

import (
	"crypto/sha256"

	"github.com/ezstate/esdc/script"
)

// HashScript computes the SHA-256 content hash of a parsed script.
//
// The hash is computed over a deterministic serialization of the AST that
// excludes source positions and the source name. Two scripts that differ
// only in formatting or comments produce the same hash, so it is suitable
// as a cache key for compiled artifacts.
func HashScript(s *script.Script) [32]byte {
	return sha256.Sum256(Serialize(s))
}
