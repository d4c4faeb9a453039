package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// RecordKey is a value object encapsulating rate limit record key
// construction. Identifiers are hashed before use as map keys, both for
// privacy (email addresses and IPs never appear as raw keys in logs or
// status dumps) and for a fixed key length.
type RecordKey struct {
	rule   RuleName
	idHash string
}

// NewRecordKey builds the key for a (rule, identifier) pair.
func NewRecordKey(rule RuleName, identifier string) RecordKey {
	return RecordKey{rule: rule, idHash: hashIdentifier(identifier)}
}

// String returns the formatted key for storage lookup.
func (k RecordKey) String() string {
	return fmt.Sprintf("rate:%s:%s", k.rule, k.idHash)
}

// Rule returns the rule component of the key.
func (k RecordKey) Rule() RuleName {
	return k.rule
}

// hashIdentifier returns the first 16 hex characters of the SHA-256 digest.
// 64 bits of the digest is ample for collision resistance at the cardinality
// of identifiers a single process sees.
func hashIdentifier(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	return hex.EncodeToString(sum[:])[:16]
}
