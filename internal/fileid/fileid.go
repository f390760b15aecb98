// Package fileid provides deterministic chunk IDs derived from a remote file path and chunk index.
package fileid

import (
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// namespace scopes docsync chunk IDs; it is itself a UUIDv5 of the project URL.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/hyperjump/docsync"))

// NormalizePath cleans a repository-relative path: forward slashes, no leading or trailing slash.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.Trim(path.Clean("/"+p), "/")
	return p
}

// ChunkID returns a stable UUIDv5 for chunk index of the file at sourcePath.
// Same path and index always yield the same ID, which every store backend accepts as a key.
func ChunkID(sourcePath string, index int) string {
	name := NormalizePath(sourcePath) + "#" + strconv.Itoa(index)
	return uuid.NewSHA1(namespace, []byte(name)).String()
}
