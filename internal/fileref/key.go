package fileref

import (
	"fmt"
	"mime"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeyPrefix roots every object this service allocates.
const KeyPrefix = "uploads/"

var (
	keyPattern = regexp.MustCompile(`^uploads/\d{4}/\d{2}/\d{2}/[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}(\.[a-z0-9]{1,10})?$`)
	extPattern = regexp.MustCompile(`^[a-z0-9]{1,10}$`)
)

// ValidKey reports whether key has the shape NewKey produces.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// NewKey allocates a fresh storage key under a date partition. The client
// supplied name contributes at most its extension; the uuid is what makes
// the key unique.
func NewKey(at time.Time, id uuid.UUID, name, contentType string) string {
	at = at.UTC()
	key := fmt.Sprintf("%s%04d/%02d/%02d/%s", KeyPrefix, at.Year(), at.Month(), at.Day(), id)
	if ext := extension(name, contentType); ext != "" {
		key += "." + ext
	}
	return key
}

func extension(name, contentType string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if ext := strings.ToLower(strings.TrimPrefix(path.Ext(base), ".")); extPattern.MatchString(ext) {
		return ext
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	if ext := strings.TrimPrefix(exts[0], "."); extPattern.MatchString(ext) {
		return ext
	}
	return ""
}
