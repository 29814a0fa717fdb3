// Package pkgstore reads and writes local packages, versions, dist-tags, maintainers and
// download counters, and maintains the cached full manifest served for each package.
package pkgstore

import (
	"errors"
	"strings"
	"time"

	"github.com/stacklok/toolhive-registry-mirror/internal/manifest"
)

var (
	// ErrVersionExists is returned when publishing a version that is already stored
	ErrVersionExists = errors.New("package version already exists")
	// ErrPackageExists is returned when creating a package that is already stored
	ErrPackageExists = errors.New("package already exists")
	// ErrUserExists is returned when creating a user whose name is taken
	ErrUserExists = errors.New("user already exists")
	// ErrPackageNotFound is returned when writing to a package that is not stored
	ErrPackageNotFound = errors.New("package not found")
	// ErrVersionNotFound is returned when updating a version that is not stored
	ErrVersionNotFound = errors.New("package version not found")
)

// Package is a locally stored package
type Package struct {
	PackageID   string
	Scope       string
	Name        string
	Description string
	IsPrivate   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Fullname returns the scoped name of the package
func (p *Package) Fullname() string {
	return manifest.Fullname(p.Scope, p.Name)
}

// Dist describes the stored artifact of a version
type Dist struct {
	TarballKey string
	Shasum     string
	Integrity  string
	Size       int64
}

// PackageVersion is one published version of a package
type PackageVersion struct {
	PackageVersionID string
	PackageID        string
	Version          string
	Description      string
	Manifest         *manifest.Version
	Readme           string
	Dist             Dist
	PURL             string
	PublishTime      time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Tag is a dist-tag pointing at a version
type Tag struct {
	PackageID string
	Tag       string
	Version   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// User is a maintainer account, either local or synced from upstream
type User struct {
	UserID    string
	Name      string
	Email     string
	IsPrivate bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName strips the upstream namespace prefix from the user name
func (u *User) DisplayName(prefix string) string {
	return strings.TrimPrefix(u.Name, prefix)
}

// DayCount is the number of downloads on one day of a month ("01".."31")
type DayCount struct {
	Day       string `json:"day"`
	Downloads int64  `json:"downloads"`
}
