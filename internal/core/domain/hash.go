package domain

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// hashLen is the number of hex characters kept from a content hash. The
// truncated hash ends up in socket paths and directory names, which have
// tight length limits on some platforms. Hashes are scoped per environment
// directory, so the shortened width is acceptable.
const hashLen = 8

// PathHash returns a deterministic fixed-width identifier for an environment
// path or store path.
func PathHash(path string) string {
	sum := blake3.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])[:hashLen]
}
