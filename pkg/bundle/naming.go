package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"
)

// PackageBasename yields the name a new dependency package is published
// under, e.g. "atrium_2602141530_linux". The minute-resolution timestamp
// keeps names unique across consecutive builds without encoding any
// dependency information; identity lives in the fingerprint, not the name.
func PackageBasename(platform string, now time.Time) string {
	return fmt.Sprintf("atrium_%s_%s", now.UTC().Format("0601021504"), platform)
}

// FileChecksum returns the hex sha256 digest and size of the file at path.
func FileChecksum(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}
