package extractor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ExtractorVersion changes whenever extraction output changes for the same
// source, invalidating cached reference sets.
const ExtractorVersion = "refs-v1"

// HashSource returns the content hash recorded on definitions.
func HashSource(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:12])
}

// CacheKey identifies the reference set of a definition:
// name, extractor version and source hash.
func CacheKey(def *VariableDefinition) string {
	if def == nil {
		return ""
	}
	name := strings.TrimSpace(def.Name)
	if name == "" {
		name = "_"
	}
	hash := def.ContentHash
	if hash == "" {
		hash = HashSource([]byte(def.Source))
	}
	return fmt.Sprintf("%s@%s:%s", name, ExtractorVersion, hash)
}
