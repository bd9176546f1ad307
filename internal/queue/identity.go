package queue

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// jobNamespace scopes job ids derived from input references.
var jobNamespace = uuid.MustParse("6f1c3a52-8d0e-4f0b-9a55-2b7d0c4e91a3")

// NormalizeInputRef cleans a local path into an absolute path. References
// with a scheme (s3://, https://) are returned trimmed but otherwise untouched.
func NormalizeInputRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.Contains(ref, "://") {
		return ref
	}
	if abs, err := filepath.Abs(ref); err == nil {
		return abs
	}
	return filepath.Clean(ref)
}

// JobIDFor derives the stable job id for an input reference. Submitting the
// same input twice yields the same id.
func JobIDFor(inputRef string) string {
	return uuid.NewSHA1(jobNamespace, []byte(NormalizeInputRef(inputRef))).String()
}
