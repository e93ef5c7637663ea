package photos

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	unsafeRun     = regexp.MustCompile(`(?i)[^a-z0-9._-]+`)
	underscoreRun = regexp.MustCompile(`_+`)
)

// SafeFilename reduces s to letters, digits, dot, dash and underscore.
func SafeFilename(s string) string {
	out := unsafeRun.ReplaceAllString(strings.TrimSpace(s), "_")
	out = underscoreRun.ReplaceAllString(out, "_")
	out = strings.Trim(out, "_")
	if out == "" {
		return "file"
	}
	return out
}

// StoragePath names the stored object for an upload. Photos on a projection
// without a bound order go under "unbound".
func StoragePath(orderID string, now time.Time, filename string) string {
	if orderID == "" {
		orderID = "unbound"
	}
	return fmt.Sprintf("orders/%s/%d_%s.jpg", SafeFilename(orderID), now.UnixMilli(), SafeFilename(filename))
}

// MaxUploadBytes caps the size of an uploaded original.
const MaxUploadBytes = 15 << 20

var allowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

// CheckUpload validates an upload's name and size before it is decoded.
func CheckUpload(filename string, size int64) error {
	extension := strings.ToLower(filepath.Ext(filename))
	if extension == "" {
		return fmt.Errorf("image file extension is required")
	}
	if _, ok := allowedExtensions[extension]; !ok {
		return fmt.Errorf("unsupported image type: %s", extension)
	}
	if size > MaxUploadBytes {
		return fmt.Errorf("image file too large (max 15MB)")
	}
	return nil
}
