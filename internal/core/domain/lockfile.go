package domain

import (
	"encoding/json"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"
)

// LockfileVersion is the only lockfile format version in existence.
const LockfileVersion = 1

// Lockfile is the locked form of an environment: the manifest that was
// locked (the merged one when composing), every locked package, and
// composition metadata when includes are declared.
type Lockfile struct {
	Version  int             `json:"lockfile-version"`
	Manifest Manifest        `json:"manifest"`
	Packages []LockedPackage `json:"packages"`
	Compose  *Compose        `json:"compose,omitempty"`
}

// ParseLockfile deserializes a lockfile from JSON.
func ParseLockfile(data []byte) (*Lockfile, error) {
	var lf Lockfile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, zerr.Wrap(err, ErrParseLockfile.Error())
	}
	return &lf, nil
}

// UserManifest returns the manifest the user edits: the composer when the
// environment is composed, else the locked manifest itself.
func (l *Lockfile) UserManifest() *Manifest {
	if l.Compose != nil {
		return &l.Compose.Composer
	}
	return &l.Manifest
}

// UnlockPackagesByGroupOrIID drops locked packages by install ID or catalog
// group so they re-resolve unconstrained on the next lock. An empty name
// list unlocks everything.
func (l *Lockfile) UnlockPackagesByGroupOrIID(groupsOrIIDs ...string) {
	if len(groupsOrIIDs) == 0 {
		l.Packages = nil
		return
	}
	named := make(map[string]bool, len(groupsOrIIDs))
	for _, name := range groupsOrIIDs {
		named[name] = true
	}
	kept := l.Packages[:0]
	for _, pkg := range l.Packages {
		if named[pkg.InstallID()] {
			continue
		}
		if cat := pkg.Catalog; cat != nil && named[cat.Group] {
			continue
		}
		kept = append(kept, pkg)
	}
	l.Packages = kept
}

// Fingerprint hashes the serialized lockfile. Two lockfiles with the same
// fingerprint are byte-identical on disk, which is how callers distinguish a
// changed lock from an unchanged one.
func (l *Lockfile) Fingerprint() (uint64, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return 0, zerr.Wrap(err, "failed to serialize lockfile")
	}
	return xxhash.Sum64(data), nil
}

// Compose records how an environment was assembled from includes. Present
// iff the manifest declares at least one include.
type Compose struct {
	Composer Manifest        `json:"composer"`
	Include  []LockedInclude `json:"include"`
	Warnings []MergeWarning  `json:"warnings"`
}

// LockedInclude is one included environment's manifest captured at
// lock-time, in declaration order.
type LockedInclude struct {
	Manifest   Manifest          `json:"manifest"`
	Name       string            `json:"name"`
	Descriptor IncludeDescriptor `json:"descriptor"`
}

// MergeWarning is a non-fatal observation from merging manifests, e.g. an
// include's value being shadowed by a later one.
type MergeWarning struct {
	Include string `json:"include,omitempty"`
	Msg     string `json:"msg"`
}

// LockedPackage is one locked package on one system. Exactly one variant is
// set. Serialized untagged; the variant is recovered structurally, trying
// flake, then catalog, then store path.
//
// Invariant: a lockfile holds at most one locked package per
// (install_id, system) pair.
type LockedPackage struct {
	Catalog   *LockedPackageCatalog
	Flake     *LockedPackageFlake
	StorePath *LockedPackageStorePath
}

// InstallID returns the manifest install table key this lock belongs to.
func (p LockedPackage) InstallID() string {
	switch {
	case p.Catalog != nil:
		return p.Catalog.InstallID
	case p.Flake != nil:
		return p.Flake.InstallID
	case p.StorePath != nil:
		return p.StorePath.InstallID
	}
	return ""
}

// System returns the system this lock applies to.
func (p LockedPackage) System() string {
	switch {
	case p.Catalog != nil:
		return p.Catalog.System
	case p.Flake != nil:
		return p.Flake.LockedInstallable.System
	case p.StorePath != nil:
		return p.StorePath.System
	}
	return ""
}

// Broken returns the broken flag where the backing data has one.
func (p LockedPackage) Broken() *bool {
	switch {
	case p.Catalog != nil:
		return p.Catalog.Broken
	case p.Flake != nil:
		return p.Flake.LockedInstallable.Broken
	}
	return nil
}

// Unfree returns the unfree flag where the backing data has one.
func (p LockedPackage) Unfree() *bool {
	switch {
	case p.Catalog != nil:
		return p.Catalog.Unfree
	case p.Flake != nil:
		return p.Flake.LockedInstallable.Unfree
	}
	return nil
}

// Derivation returns the locked derivation path, empty for store paths.
func (p LockedPackage) Derivation() string {
	switch {
	case p.Catalog != nil:
		return p.Catalog.Derivation
	case p.Flake != nil:
		return p.Flake.LockedInstallable.Derivation
	}
	return ""
}

func (p LockedPackage) MarshalJSON() ([]byte, error) {
	switch {
	case p.Catalog != nil:
		return json.Marshal(p.Catalog)
	case p.Flake != nil:
		return json.Marshal(p.Flake)
	case p.StorePath != nil:
		return json.Marshal(p.StorePath)
	}
	return nil, zerr.With(ErrAmbiguousPackage, "reason", "empty locked package")
}

func (p *LockedPackage) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return zerr.Wrap(err, ErrParseLockfile.Error())
	}
	switch {
	case fields["locked-url"] != nil && fields["locked-flake-attr-path"] != nil:
		p.Flake = &LockedPackageFlake{}
		return json.Unmarshal(data, p.Flake)
	case fields["attr_path"] != nil && fields["derivation"] != nil:
		p.Catalog = &LockedPackageCatalog{}
		return json.Unmarshal(data, p.Catalog)
	case fields["store-path"] != nil:
		p.StorePath = &LockedPackageStorePath{}
		return json.Unmarshal(data, p.StorePath)
	}
	return zerr.With(ErrAmbiguousPackage, "fields", len(fields))
}

// LockedPackageCatalog is a catalog resolution result flattened into the
// lockfile, plus the fields resolution itself doesn't know: the system the
// descriptor was expanded for, the group it resolved in, and the manifest
// priority.
type LockedPackageCatalog struct {
	AttrPath         string            `json:"attr_path"`
	Broken           *bool             `json:"broken"`
	Derivation       string            `json:"derivation"`
	Description      *string           `json:"description"`
	InstallID        string            `json:"install_id"`
	License          *string           `json:"license"`
	LockedURL        string            `json:"locked_url"`
	Name             string            `json:"name"`
	Pname            string            `json:"pname"`
	Rev              string            `json:"rev"`
	RevCount         int64             `json:"rev_count"`
	RevDate          time.Time         `json:"rev_date"`
	ScrapeDate       time.Time         `json:"scrape_date"`
	Stabilities      []string          `json:"stabilities"`
	Unfree           *bool             `json:"unfree"`
	Version          string            `json:"version"`
	OutputsToInstall []string          `json:"outputs_to_install"`
	Outputs          map[string]string `json:"outputs"`
	System           string            `json:"system"`
	Group            string            `json:"group"`
	Priority         uint64            `json:"priority"`
}

// NewLockedPackageCatalog combines a catalog record with the descriptor it
// resolved for.
func NewLockedPackageCatalog(info PackageResolutionInfo, descriptor CatalogDescriptor) LockedPackageCatalog {
	outputs := make(map[string]string, len(info.Outputs))
	for _, out := range info.Outputs {
		outputs[out.Name] = out.StorePath
	}
	scrapeDate := time.Now().UTC()
	if info.ScrapeDate != nil {
		scrapeDate = *info.ScrapeDate
	}
	priority := DefaultPriority
	if descriptor.Priority != nil {
		priority = *descriptor.Priority
	}
	return LockedPackageCatalog{
		AttrPath:         info.AttrPath,
		Broken:           info.Broken,
		Derivation:       info.Derivation,
		Description:      info.Description,
		InstallID:        info.InstallID,
		License:          info.License,
		LockedURL:        info.LockedURL,
		Name:             info.Name,
		Pname:            info.Pname,
		Rev:              info.Rev,
		RevCount:         info.RevCount,
		RevDate:          info.RevDate,
		ScrapeDate:       scrapeDate,
		Stabilities:      info.Stabilities,
		Unfree:           info.Unfree,
		Version:          info.Version,
		OutputsToInstall: info.OutputsToInstall,
		Outputs:          outputs,
		System:           info.System,
		Group:            descriptor.Group(),
		Priority:         priority,
	}
}

// LockedPackageFlake is a locked flake installable. The lock data is owned
// by the flake locker and embedded unaltered.
type LockedPackageFlake struct {
	InstallID string `json:"install_id"`
	LockedInstallable
}

// LockedInstallable is the output of `nix lock-flake-installable`,
// kebab-cased on the wire where the tool does so.
type LockedInstallable struct {
	LockedURL                 string            `json:"locked-url"`
	FlakeDescription          *string           `json:"flake-description,omitempty"`
	LockedFlakeAttrPath       string            `json:"locked-flake-attr-path"`
	Derivation                string            `json:"derivation"`
	Outputs                   map[string]string `json:"outputs"`
	OutputNames               []string          `json:"output-names"`
	OutputsToInstall          []string          `json:"outputs-to-install,omitempty"`
	RequestedOutputsToInstall []string          `json:"requested-outputs-to-install,omitempty"`
	PackageSystem             string            `json:"package-system"`
	System                    string            `json:"system"`
	Name                      string            `json:"name"`
	Pname                     *string           `json:"pname,omitempty"`
	Version                   *string           `json:"version,omitempty"`
	Description               *string           `json:"description,omitempty"`
	Licenses                  []string          `json:"licenses,omitempty"`
	Broken                    *bool             `json:"broken,omitempty"`
	Unfree                    *bool             `json:"unfree,omitempty"`
	Priority                  uint64            `json:"priority"`
}

// LockedPackageStorePath is a store path locked by definition: the
// descriptor already names the exact artifact.
type LockedPackageStorePath struct {
	InstallID string `json:"install_id"`
	StorePath string `json:"store-path"`
	System    string `json:"system"`
	Priority  uint64 `json:"priority"`
}
