// Package idgen provides pluggable ID generation for structura records.
//
// Stores, queues and loggers accept a Generator so tests can pin IDs while
// production uses time-sortable UUIDv7 values.
package idgen

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// NanoID returns a Generator that produces base-36 IDs of the given length.
// Used for short-lived keys such as upload spool names.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range buf {
			buf[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(buf)
	}
}

// Prefixed prepends a fixed prefix to every ID ("doc_", "evt_", "job_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Sequence returns a deterministic Generator ("<prefix>1", "<prefix>2", ...).
// Not safe for concurrent use; meant for tests.
func Sequence(prefix string) Generator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

// Default is UUIDv7.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

// Parse validates a UUID string and returns its canonical form.
func Parse(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid UUID: %w", err)
	}
	return u.String(), nil
}
