// Package objectkey builds storage keys for document files.
package objectkey

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// SanitizeFileName makes a client-supplied file name safe to embed in a
// storage key: each path separator becomes "-" and every whitespace run
// collapses to a single "-". "My File/Name.pdf" sanitizes to
// "My-File-Name.pdf".
func SanitizeFileName(name string) string {
	replaced := strings.NewReplacer("\\", "-", "/", "-").Replace(name)
	return whitespaceRun.ReplaceAllString(replaced, "-")
}

// ForDocumentFile derives the storage key for a document file:
// <tenant>/<project>/<document>/<file>/<sanitized file name>.
// The id prefix keeps keys collision-free per tenant and project even when
// two uploads share a file name.
func ForDocumentFile(tenantID, projectID, documentID, fileID uuid.UUID, fileName string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", tenantID, projectID, documentID, fileID, SanitizeFileName(fileName))
}
