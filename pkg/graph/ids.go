package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const idHashLength = 16

func hashID(prefix string, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return prefix + hex.EncodeToString(sum[:])[:idHashLength]
}

// normalizeName lower-cases a name and collapses inner whitespace.
func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// EntityID returns the identity of an entity with the given name and type.
// Names are compared case-insensitively and whitespace-normalized.
func EntityID(name, entityType string) string {
	return hashID("ent_", normalizeName(entityType), normalizeName(name))
}

// RelationshipID returns the identity of a directed relationship.
func RelationshipID(sourceID, targetID, relationshipType string) string {
	return hashID("rel_", sourceID, targetID, relationshipType)
}

// GraphID returns the graph identifier of a document.
func GraphID(documentID string) string {
	return hashID("kg_", documentID)
}
