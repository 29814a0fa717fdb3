// Package publish turns a downloaded tarball and its version document into a stored
// package version.
package publish

import (
	"context"
	"crypto/sha1" //nolint:gosec // shasum is part of the npm dist format
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/package-url/packageurl-go"

	"github.com/stacklok/toolhive-registry-mirror/internal/artifacts"
	"github.com/stacklok/toolhive-registry-mirror/internal/manifest"
	"github.com/stacklok/toolhive-registry-mirror/internal/pkgstore"
)

// ErrShasumMismatch is returned when the tarball does not match the advertised shasum
var ErrShasumMismatch = errors.New("tarball shasum mismatch")

// Command describes one version to publish
type Command struct {
	Scope       string
	Name        string
	Version     string
	Description string
	Manifest    *manifest.Version
	Readme      string
	// LocalFile is the downloaded tarball
	LocalFile   string
	IsPrivate   bool
	PublishTime time.Time
	// SkipRefreshManifests leaves the cached full manifest untouched
	SkipRefreshManifests bool
}

// Publisher stores tarballs and version records
type Publisher struct {
	manager  *pkgstore.Manager
	blobs    artifacts.Store
	registry string
}

// New creates a Publisher. registry is the public URL used in dist.tarball.
func New(manager *pkgstore.Manager, blobs artifacts.Store, registry string) *Publisher {
	return &Publisher{
		manager:  manager,
		blobs:    blobs,
		registry: strings.TrimRight(registry, "/"),
	}
}

// Publish stores cmd as a new version owned by publisher. It returns an error
// wrapping pkgstore.ErrVersionExists when the version is already stored.
func (p *Publisher) Publish(ctx context.Context, cmd Command, publisher *pkgstore.User) (*pkgstore.PackageVersion, error) {
	fullname := manifest.Fullname(cmd.Scope, cmd.Name)
	exists := fmt.Errorf("cannot publish %s@%s: %w", fullname, cmd.Version, pkgstore.ErrVersionExists)

	pkg, err := p.manager.FindPackage(ctx, fullname)
	if err != nil {
		return nil, err
	}
	if pkg != nil {
		existing, err := p.manager.FindPackageVersion(ctx, pkg, cmd.Version)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, exists
		}
	}

	// nothing is written until the tarball is verified and stored
	sums, err := digest(cmd.LocalFile)
	if err != nil {
		return nil, err
	}
	doc := cmd.Manifest
	if doc == nil {
		doc = &manifest.Version{Name: fullname, Version: cmd.Version}
	}
	if doc.Dist.Shasum != "" && doc.Dist.Shasum != sums.shasum {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrShasumMismatch, doc.Dist.Shasum, sums.shasum)
	}

	key := artifacts.TarballKey(cmd.Scope, cmd.Name, cmd.Version)
	if err := p.blobs.PutFile(ctx, key, cmd.LocalFile); err != nil {
		return nil, err
	}

	pkg, created, err := p.manager.EnsurePackage(ctx, cmd.Scope, cmd.Name, cmd.Description)
	if err != nil {
		_ = p.blobs.Remove(ctx, key)
		return nil, err
	}

	doc.Dist.Tarball = p.registry + "/" + key
	doc.Dist.Shasum = sums.shasum
	if doc.Dist.Integrity == "" {
		doc.Dist.Integrity = sums.integrity
	}
	doc.Dist.Size = sums.size

	publishTime := cmd.PublishTime
	if publishTime.IsZero() {
		publishTime = time.Now()
	}
	pv := &pkgstore.PackageVersion{
		PackageID:   pkg.PackageID,
		Version:     cmd.Version,
		Description: cmd.Description,
		Manifest:    doc,
		Readme:      cmd.Readme,
		Dist: pkgstore.Dist{
			TarballKey: key,
			Shasum:     sums.shasum,
			Integrity:  doc.Dist.Integrity,
			Size:       sums.size,
		},
		PURL:        PURL(cmd.Scope, cmd.Name, cmd.Version),
		PublishTime: publishTime,
	}
	if err := p.manager.CreatePackageVersion(ctx, pv); err != nil {
		if errors.Is(err, pkgstore.ErrVersionExists) {
			return nil, exists
		}
		// the blob is orphaned when the record could not be written
		_ = p.blobs.Remove(ctx, key)
		return nil, err
	}

	if created && publisher != nil {
		if _, err := p.manager.SavePackageMaintainers(ctx, pkg, []*pkgstore.User{publisher}); err != nil {
			return nil, err
		}
	}
	if !cmd.SkipRefreshManifests {
		if err := p.manager.RefreshManifestCache(ctx, pkg); err != nil {
			return nil, err
		}
	}
	return pv, nil
}

// PURL returns the package URL of an npm version, e.g. pkg:npm/%40scope/name@1.0.0
func PURL(scope, name, version string) string {
	return packageurl.NewPackageURL(packageurl.TypeNPM, scope, name, version, nil, "").ToString()
}

type sums struct {
	shasum    string
	integrity string
	size      int64
}

func digest(path string) (*sums, error) {
	f, err := os.Open(path) //nolint:gosec // path is a temp file we downloaded
	if err != nil {
		return nil, fmt.Errorf("failed to open tarball: %w", err)
	}
	defer f.Close()

	sha1sum := sha1.New() //nolint:gosec // shasum is part of the npm dist format
	sha512sum := sha512.New()
	size, err := io.Copy(io.MultiWriter(sha1sum, sha512sum), f)
	if err != nil {
		return nil, fmt.Errorf("failed to hash tarball: %w", err)
	}
	return &sums{
		shasum:    hex.EncodeToString(sha1sum.Sum(nil)),
		integrity: "sha512-" + base64.StdEncoding.EncodeToString(sha512sum.Sum(nil)),
		size:      size,
	}, nil
}
