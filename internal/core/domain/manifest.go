package domain

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.trai.ch/zerr"
)

const (
	// DefaultGroupName is the implicit group for installs that don't name one.
	DefaultGroupName = "toplevel"

	// DefaultPriority matches the build system's priority type, an explicit
	// uint64 rather than a pointer-sized integer.
	DefaultPriority uint64 = 5
)

// DefaultSystems are the systems an environment targets when
// options.systems is unset.
var DefaultSystems = []string{
	"aarch64-darwin",
	"aarch64-linux",
	"x86_64-darwin",
	"x86_64-linux",
}

// Manifest is the declarative description of an environment.
type Manifest struct {
	Version int                          `json:"version"`
	Install map[string]PackageDescriptor `json:"install,omitempty"`
	Vars    map[string]string            `json:"vars,omitempty"`
	Hook    *Hook                        `json:"hook,omitempty"`
	Profile *Profile                     `json:"profile,omitempty"`
	Options Options                      `json:"options,omitempty"`
	Include Include                      `json:"include,omitempty"`
}

// Hook holds scripts run while an environment activates.
type Hook struct {
	OnActivate string `json:"on-activate,omitempty"`
}

// Profile holds shell-specific scripts sourced on attach.
type Profile struct {
	Common string `json:"common,omitempty"`
	Bash   string `json:"bash,omitempty"`
	Zsh    string `json:"zsh,omitempty"`
	Fish   string `json:"fish,omitempty"`
	Tcsh   string `json:"tcsh,omitempty"`
}

// Options are environment-wide settings that influence resolution.
type Options struct {
	Systems []string `json:"systems,omitempty"`
	Allow   Allows   `json:"allow,omitempty"`
	Semver  Semver   `json:"semver,omitempty"`
}

// Allows is the package acceptance policy. Unset booleans fall back to the
// defaults applied in EnforceAllows: broken disallowed, unfree allowed.
type Allows struct {
	Unfree   *bool    `json:"unfree,omitempty"`
	Broken   *bool    `json:"broken,omitempty"`
	Licenses []string `json:"licenses,omitempty"`
}

// Semver holds settings for semver-based version resolution.
type Semver struct {
	AllowPreReleases bool `json:"allow-pre-releases,omitempty"`
}

// Include declares environments composed into this one.
type Include struct {
	Environments []IncludeDescriptor `json:"environments,omitempty"`
}

// IncludeDescriptor names an environment to compose. Only local directories
// are supported as sources.
type IncludeDescriptor struct {
	Dir  string `json:"dir"`
	Name string `json:"name,omitempty"`
}

// DisplayName is the name the include is referred to by in upgrade targets
// and warnings: the explicit name if given, else the directory base name.
func (d IncludeDescriptor) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	if idx := strings.LastIndex(d.Dir, "/"); idx >= 0 {
		return d.Dir[idx+1:]
	}
	return d.Dir
}

// EnabledSystems returns options.systems or the default set.
func (m *Manifest) EnabledSystems() []string {
	if len(m.Options.Systems) > 0 {
		return m.Options.Systems
	}
	return DefaultSystems
}

// PackageDescriptor is one entry of the install table. Exactly one of the
// variants is set. The JSON form is untagged; the variant is recovered from
// which discriminating field is present.
type PackageDescriptor struct {
	Catalog   *CatalogDescriptor
	Flake     *FlakeDescriptor
	StorePath *StorePathDescriptor
}

// CatalogDescriptor requests a package from the catalog.
type CatalogDescriptor struct {
	PkgPath  string   `json:"pkg-path"`
	PkgGroup *string  `json:"pkg-group,omitempty"`
	Version  *string  `json:"version,omitempty"`
	Systems  []string `json:"systems,omitempty"`
	Priority *uint64  `json:"priority,omitempty"`
}

// Group returns the group the descriptor resolves in.
func (d *CatalogDescriptor) Group() string {
	if d.PkgGroup != nil {
		return *d.PkgGroup
	}
	return DefaultGroupName
}

// FlakeDescriptor requests a package from a flake reference.
type FlakeDescriptor struct {
	Flake    string   `json:"flake"`
	Systems  []string `json:"systems,omitempty"`
	Priority *uint64  `json:"priority,omitempty"`
}

// StorePathDescriptor requests an already-built store path.
type StorePathDescriptor struct {
	StorePath string   `json:"store-path"`
	Systems   []string `json:"systems,omitempty"`
	Priority  *uint64  `json:"priority,omitempty"`
}

// Systems returns the descriptor's explicit system restriction, or nil.
func (p PackageDescriptor) Systems() []string {
	switch {
	case p.Catalog != nil:
		return p.Catalog.Systems
	case p.Flake != nil:
		return p.Flake.Systems
	case p.StorePath != nil:
		return p.StorePath.Systems
	}
	return nil
}

// Priority returns the descriptor's priority, defaulted.
func (p PackageDescriptor) Priority() uint64 {
	var v *uint64
	switch {
	case p.Catalog != nil:
		v = p.Catalog.Priority
	case p.Flake != nil:
		v = p.Flake.Priority
	case p.StorePath != nil:
		v = p.StorePath.Priority
	}
	if v == nil {
		return DefaultPriority
	}
	return *v
}

// Equal reports full structural equality, priority included.
func (p PackageDescriptor) Equal(other PackageDescriptor) bool {
	switch {
	case p.Catalog != nil && other.Catalog != nil:
		return equalStrPtr(p.Catalog.PkgGroup, other.Catalog.PkgGroup) &&
			equalStrPtr(p.Catalog.Version, other.Catalog.Version) &&
			p.Catalog.PkgPath == other.Catalog.PkgPath &&
			slices.Equal(p.Catalog.Systems, other.Catalog.Systems) &&
			equalU64Ptr(p.Catalog.Priority, other.Catalog.Priority)
	case p.Flake != nil && other.Flake != nil:
		return p.Flake.Flake == other.Flake.Flake &&
			slices.Equal(p.Flake.Systems, other.Flake.Systems) &&
			equalU64Ptr(p.Flake.Priority, other.Flake.Priority)
	case p.StorePath != nil && other.StorePath != nil:
		return p.StorePath.StorePath == other.StorePath.StorePath &&
			slices.Equal(p.StorePath.Systems, other.StorePath.Systems) &&
			equalU64Ptr(p.StorePath.Priority, other.StorePath.Priority)
	}
	return false
}

// InvalidatesExistingResolution reports whether replacing old with p changes
// which derivation would be selected, making a prior lock unusable as a
// constraint. Priority never affects selection, so it never invalidates.
func (p PackageDescriptor) InvalidatesExistingResolution(old PackageDescriptor) bool {
	switch {
	case p.Catalog != nil && old.Catalog != nil:
		return p.Catalog.PkgPath != old.Catalog.PkgPath ||
			!equalStrPtr(p.Catalog.PkgGroup, old.Catalog.PkgGroup) ||
			!equalStrPtr(p.Catalog.Version, old.Catalog.Version) ||
			!slices.Equal(p.Catalog.Systems, old.Catalog.Systems)
	case p.Flake != nil && old.Flake != nil:
		return p.Flake.Flake != old.Flake.Flake ||
			!slices.Equal(p.Flake.Systems, old.Flake.Systems)
	case p.StorePath != nil && old.StorePath != nil:
		return p.StorePath.StorePath != old.StorePath.StorePath ||
			!slices.Equal(p.StorePath.Systems, old.StorePath.Systems)
	}
	// Changing the descriptor kind always invalidates.
	return true
}

// ValidateVersionConstraint rejects version strings that look like semver
// range expressions but don't parse as one. Anything else passes through;
// the catalog owns the grammar for its own partial-version syntax.
func (p PackageDescriptor) ValidateVersionConstraint() error {
	if p.Catalog == nil || p.Catalog.Version == nil {
		return nil
	}
	v := *p.Catalog.Version
	if !strings.ContainsAny(v, "^~<>=*") {
		return nil
	}
	if _, err := semver.NewConstraint(v); err != nil {
		wrapped := zerr.Wrap(err, "invalid version constraint")
		wrapped = zerr.With(wrapped, "pkg_path", p.Catalog.PkgPath)
		return zerr.With(wrapped, "version", v)
	}
	return nil
}

func (p PackageDescriptor) MarshalJSON() ([]byte, error) {
	switch {
	case p.Catalog != nil:
		return json.Marshal(p.Catalog)
	case p.Flake != nil:
		return json.Marshal(p.Flake)
	case p.StorePath != nil:
		return json.Marshal(p.StorePath)
	}
	return nil, zerr.With(ErrParseManifest, "reason", "empty package descriptor")
}

func (p *PackageDescriptor) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return zerr.Wrap(err, ErrParseManifest.Error())
	}
	switch {
	case fields["flake"] != nil:
		p.Flake = &FlakeDescriptor{}
		return json.Unmarshal(data, p.Flake)
	case fields["pkg-path"] != nil:
		p.Catalog = &CatalogDescriptor{}
		return json.Unmarshal(data, p.Catalog)
	case fields["store-path"] != nil:
		p.StorePath = &StorePathDescriptor{}
		return json.Unmarshal(data, p.StorePath)
	}
	return zerr.With(ErrParseManifest, "reason", "package descriptor matches no known shape")
}

func equalStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalU64Ptr(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
