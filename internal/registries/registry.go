// Package registries manages the upstream registry records a mirror knows about.
package registries

import (
	"errors"
	"time"
)

var (
	// ErrRegistryNotFound is returned when no registry has the given id
	ErrRegistryNotFound = errors.New("registry not found")
	// ErrRegistryExists is returned when the registry name is taken
	ErrRegistryExists = errors.New("registry already exists")
	// ErrInvalidRegistry is returned when a record misses its name or host
	ErrInvalidRegistry = errors.New("invalid registry")
)

// Type is the flavour of software behind a registry
type Type string

const (
	// TypeCnpmcore is a cnpmcore registry
	TypeCnpmcore Type = "cnpmcore"
	// TypeCnpmjsorg is a legacy cnpmjs.org registry
	TypeCnpmjsorg Type = "cnpmjsorg"
	// TypeVerdaccio is a verdaccio registry
	TypeVerdaccio Type = "verdaccio"
)

const (
	// DefaultPageSize applies when a list request has no page size
	DefaultPageSize = 20
	// MaxPageSize caps the page size of list requests
	MaxPageSize = 100
)

// Registry is an upstream registry record
type Registry struct {
	RegistryID   string    `json:"registryId"`
	Name         string    `json:"name"`
	Host         string    `json:"host"`
	ChangeStream string    `json:"changeStream"`
	UserPrefix   string    `json:"userPrefix"`
	Type         Type      `json:"type"`
	CreatedAt    time.Time `json:"gmtCreate"`
	UpdatedAt    time.Time `json:"gmtModified"`
}

// ListOptions selects a page of registries
type ListOptions struct {
	PageIndex int
	PageSize  int
}

func (o ListOptions) normalize() ListOptions {
	if o.PageIndex < 0 {
		o.PageIndex = 0
	}
	switch {
	case o.PageSize <= 0:
		o.PageSize = DefaultPageSize
	case o.PageSize > MaxPageSize:
		o.PageSize = MaxPageSize
	}
	return o
}

func (o ListOptions) offset() int {
	return o.PageIndex * o.PageSize
}

// Page is one page of registries with the total number of records
type Page struct {
	Count int64       `json:"count"`
	Data  []*Registry `json:"data"`
}
