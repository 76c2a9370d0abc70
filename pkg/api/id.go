package api

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

const documentIDPrefix = "doc_"

var chunkIDPattern = regexp.MustCompile(`^g[0-9]+-[0-9]+$`)

// NewDocumentID generates a new document ID with the "doc_" prefix
// followed by a random UUID.
func NewDocumentID() string {
	return documentIDPrefix + uuid.NewString()
}

// ValidateDocumentID checks whether the given string is a valid document ID.
func ValidateDocumentID(id string) bool {
	if len(id) <= len(documentIDPrefix) || id[:len(documentIDPrefix)] != documentIDPrefix {
		return false
	}
	_, err := uuid.Parse(id[len(documentIDPrefix):])
	return err == nil
}

// ChunkID returns the identifier of the i-th chunk inserted for the given
// document generation. IDs are sequential within a generation and never
// repeat across generations.
func ChunkID(generation uint64, i int) string {
	return fmt.Sprintf("g%d-%d", generation, i)
}

// ValidateChunkID checks whether the given string has the ChunkID shape.
func ValidateChunkID(id string) bool {
	return chunkIDPattern.MatchString(id)
}
