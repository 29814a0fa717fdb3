// Package artifacts stores package tarballs on the local filesystem or in an S3 compatible bucket.
package artifacts

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when no blob is stored under a key
var ErrNotFound = errors.New("artifact not found")

// ContentTypeTarball is the media type of package tarballs
const ContentTypeTarball = "application/octet-stream"

// Store keeps blobs addressed by slash separated keys
type Store interface {
	// PutFile uploads the file at localPath under key, replacing any previous blob
	PutFile(ctx context.Context, key, localPath string) error
	// Open returns a reader over the blob or ErrNotFound
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Remove deletes the blob; removing a missing blob is not an error
	Remove(ctx context.Context, key string) error
}

// TarballKey is the storage key of a version tarball, e.g. "@scope/name/-/name-1.0.0.tgz"
func TarballKey(scope, name, version string) string {
	prefix := name
	if scope != "" {
		prefix = scope + "/" + name
	}
	return prefix + "/-/" + name + "-" + version + ".tgz"
}
