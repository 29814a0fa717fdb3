// Package manifest models the full package document served by a registry,
// in the shape shared by the upstream client and the local package store.
package manifest

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/gowebpki/jcs"
	"github.com/tidwall/gjson"

	"github.com/stacklok/toolhive-registry-mirror/internal/versions"
)

const (
	// SecurityHoldingDescription marks a placeholder published over a removed package
	SecurityHoldingDescription = "security holding package"
	// SecurityHoldingRepository is the repository of those placeholders
	SecurityHoldingRepository = "npm/security-holder"
)

// DriftFields are the version fields that may change after a version is published
var DriftFields = []string{
	"peerDependenciesMeta",
	"os",
	"cpu",
	"workspaces",
	"hasInstallScript",
	"deprecated",
}

// Maintainer is a user allowed to publish a package
type Maintainer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Dist points at the artifact of a version
type Dist struct {
	Tarball   string `json:"tarball,omitempty"`
	Shasum    string `json:"shasum,omitempty"`
	Integrity string `json:"integrity,omitempty"`
	Size      int64  `json:"size,omitempty"`
}

// Manifest is a full package document: versions, dist-tags, maintainers and time map
type Manifest struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description,omitempty"`
	DistTags    map[string]string          `json:"dist-tags"`
	Maintainers json.RawMessage            `json:"maintainers,omitempty"`
	Versions    map[string]*Version        `json:"versions"`
	Time        map[string]json.RawMessage `json:"time,omitempty"`
	Readme      json.RawMessage            `json:"readme,omitempty"`

	raw []byte
}

// Parse decodes a full manifest and keeps the raw document for field lookups
func Parse(body []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	m.raw = body
	if m.DistTags == nil {
		m.DistTags = map[string]string{}
	}
	if m.Versions == nil {
		m.Versions = map[string]*Version{}
	}
	return &m, nil
}

// MaintainerList returns the maintainers array, ignoring malformed entries
func (m *Manifest) MaintainerList() []Maintainer {
	if len(m.Maintainers) == 0 {
		return nil
	}
	var list []Maintainer
	if err := json.Unmarshal(m.Maintainers, &list); err != nil {
		var loose []json.RawMessage
		if err := json.Unmarshal(m.Maintainers, &loose); err != nil {
			return nil
		}
		for _, item := range loose {
			var maintainer Maintainer
			if json.Unmarshal(item, &maintainer) == nil {
				list = append(list, maintainer)
			}
		}
	}
	return list
}

// SetMaintainers replaces the maintainers array
func (m *Manifest) SetMaintainers(list []Maintainer) {
	data, _ := json.Marshal(list)
	m.Maintainers = data
}

// MaintainersJSON renders the maintainers as upstream sent them
func (m *Manifest) MaintainersJSON() string {
	if len(m.Maintainers) == 0 {
		return "undefined"
	}
	return string(m.Maintainers)
}

// IsSecurityHolding reports whether the document is a security holding placeholder
func (m *Manifest) IsSecurityHolding() bool {
	if m.raw == nil {
		m.raw, _ = json.Marshal(m)
	}
	if gjson.GetBytes(m.raw, "description").String() == SecurityHoldingDescription {
		return true
	}
	repo := gjson.GetBytes(m.raw, "repository")
	if repo.Type == gjson.String {
		return repo.String() == SecurityHoldingRepository
	}
	return false
}

// Unpublished returns the time.unpublished record, nil when absent
func (m *Manifest) Unpublished() json.RawMessage {
	raw, ok := m.Time["unpublished"]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}

// PublishTime returns the recorded publish time of version, if any
func (m *Manifest) PublishTime(version string) (time.Time, bool) {
	raw, ok := m.Time[version]
	if !ok {
		return time.Time{}, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SortedVersions returns the version strings in ascending semver order.
// Strings that are not valid semver sort after the valid ones, lexically.
func (m *Manifest) SortedVersions() []string {
	list := make([]string, 0, len(m.Versions))
	for v := range m.Versions {
		list = append(list, v)
	}
	slices.SortStableFunc(list, versions.Compare)
	return list
}

// Version is one entry of the versions map. Every field upstream sends is kept
// in Fields so the document can be stored and compared without loss.
type Version struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Description  string            `json:"description,omitempty"`
	Dist         Dist              `json:"dist"`
	Dependencies map[string]string `json:"dependencies,omitempty"`

	Fields map[string]json.RawMessage `json:"-"`

	// raw and invalid are set for an entry that is not a JSON object
	raw     json.RawMessage
	invalid error
}

// UnmarshalJSON keeps every field of the version document. Typed fields are
// decoded leniently: old documents carry arrays, numbers or nulls where newer
// ones carry objects and strings, and those fields are left zero. An entry that
// is not an object decodes without error and reports it through Err.
func (v *Version) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		*v = Version{
			raw:     append(json.RawMessage(nil), data...),
			invalid: fmt.Errorf("version document is not an object: %s", truncate(data, 64)),
		}
		return nil
	}

	*v = Version{Fields: fields}
	v.Name = stringField(fields["name"])
	v.Version = stringField(fields["version"])
	v.Description = stringField(fields["description"])
	v.Dist = distField(fields["dist"])
	if deps := gjson.ParseBytes(fields["dependencies"]); deps.IsObject() {
		v.Dependencies = map[string]string{}
		deps.ForEach(func(key, value gjson.Result) bool {
			v.Dependencies[key.String()] = value.String()
			return true
		})
	}
	return nil
}

// Err reports a version entry that could not be read as a document
func (v *Version) Err() error {
	if v == nil {
		return nil
	}
	return v.invalid
}

// MarshalJSON writes back every field, with typed fields taking precedence.
// Typed dist fields are merged into the upstream dist object so extra keys such
// as fileCount, unpackedSize and signatures survive.
func (v *Version) MarshalJSON() ([]byte, error) {
	if v.invalid != nil {
		return v.raw, nil
	}
	out := make(map[string]json.RawMessage, len(v.Fields)+5)
	for k, val := range v.Fields {
		out[k] = val
	}
	set := func(key string, value any) error {
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		out[key] = data
		return nil
	}
	if err := set("name", v.Name); err != nil {
		return nil, err
	}
	if err := set("version", v.Version); err != nil {
		return nil, err
	}
	if v.Description != "" {
		if err := set("description", v.Description); err != nil {
			return nil, err
		}
	}
	dist, err := v.mergedDist()
	if err != nil {
		return nil, err
	}
	out["dist"] = dist
	if len(v.Dependencies) > 0 {
		if err := set("dependencies", v.Dependencies); err != nil {
			return nil, err
		}
	}
	return json.Marshal(out)
}

func (v *Version) mergedDist() (json.RawMessage, error) {
	dist := map[string]json.RawMessage{}
	if raw := v.Fields["dist"]; gjson.ParseBytes(raw).IsObject() {
		if err := json.Unmarshal(raw, &dist); err != nil {
			return nil, fmt.Errorf("failed to decode dist: %w", err)
		}
	}
	typed := map[string]any{}
	if v.Dist.Tarball != "" {
		typed["tarball"] = v.Dist.Tarball
	}
	if v.Dist.Shasum != "" {
		typed["shasum"] = v.Dist.Shasum
	}
	if v.Dist.Integrity != "" {
		typed["integrity"] = v.Dist.Integrity
	}
	if v.Dist.Size != 0 {
		typed["size"] = v.Dist.Size
	}
	for key, value := range typed {
		data, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		dist[key] = data
	}
	return json.Marshal(dist)
}

func stringField(raw json.RawMessage) string {
	if r := gjson.ParseBytes(raw); r.Type == gjson.String {
		return r.String()
	}
	return ""
}

func distField(raw json.RawMessage) Dist {
	r := gjson.ParseBytes(raw)
	if !r.IsObject() {
		return Dist{}
	}
	d := Dist{
		Tarball:   stringField(json.RawMessage(r.Get("tarball").Raw)),
		Shasum:    stringField(json.RawMessage(r.Get("shasum").Raw)),
		Integrity: stringField(json.RawMessage(r.Get("integrity").Raw)),
	}
	if size := r.Get("size"); size.Type == gjson.Number {
		d.Size = size.Int()
	}
	return d
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}

// Field returns the raw value of a field, nil when absent
func (v *Version) Field(name string) json.RawMessage {
	if v == nil || v.Fields == nil {
		return nil
	}
	return v.Fields[name]
}

// SetField sets a raw field value; a nil value removes the field
func (v *Version) SetField(name string, value json.RawMessage) {
	if v.Fields == nil {
		v.Fields = map[string]json.RawMessage{}
	}
	if value == nil {
		delete(v.Fields, name)
		return
	}
	v.Fields[name] = value
}

// DependencyNames returns the sorted names of the runtime dependencies
func (v *Version) DependencyNames() []string {
	names := make([]string, 0, len(v.Dependencies))
	for name := range v.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Drift returns the whitelisted fields whose canonical value differs between
// remote and local. Absent and null are both rendered as absent.
func Drift(remote, local *Version) (map[string]json.RawMessage, error) {
	diff := map[string]json.RawMessage{}
	for _, key := range DriftFields {
		remoteValue, err := canonical(remote.Field(key))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		localValue, err := canonical(local.Field(key))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		if remoteValue != localValue {
			diff[key] = remote.Field(key)
		}
	}
	return diff, nil
}

func canonical(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", nil
	}
	out, err := jcs.Transform([]byte(trimmed))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// SplitFullname splits "@scope/name" into its scope and name
func SplitFullname(fullname string) (scope, name string) {
	if strings.HasPrefix(fullname, "@") {
		if i := strings.Index(fullname, "/"); i > 0 {
			return fullname[:i], fullname[i+1:]
		}
	}
	return "", fullname
}

// Fullname joins scope and name
func Fullname(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "/" + name
}
