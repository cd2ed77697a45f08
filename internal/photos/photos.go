// Package photos stores uploaded photo blobs. The event log only records
// where a blob lives; the bytes go to a Store.
package photos

import (
	"context"
	"fmt"
	"mime"
	"strings"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/plantlog/internal/idgen"
)

// Store writes photo blobs and returns the location recorded in the photo
// event.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (location string, err error)
}

// Key returns a fresh blob key for an entity's photo, grouped by entity.
func Key(entity uuid.UUID, contentType string) (string, error) {
	stem, err := idgen.Blob()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s%s", entity, stem, extension(contentType)), nil
}

func extension(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	}
	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}

// IsImage reports whether contentType names an image media type.
func IsImage(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && strings.HasPrefix(mediaType, "image/")
}
