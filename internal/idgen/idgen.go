// Package idgen generates short, URL-safe ids for connections and uploads.
// Durable records use UUIDs; these ids only need to be unique within a
// process lifetime and readable in logs.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// ObserverPrefix marks ids of notification observers.
const ObserverPrefix = "obs-"

// BlobPrefix marks photo blob keys.
const BlobPrefix = "img-"

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 12

// Observer returns a new observer id.
func Observer() (string, error) {
	return GenerateWithPrefix(ObserverPrefix)
}

// Blob returns a new photo blob key stem.
func Blob() (string, error) {
	return GenerateWithPrefix(BlobPrefix)
}

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
