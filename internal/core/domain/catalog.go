package domain

import (
	"strings"
	"time"
)

// PackageGroup is a named bundle of descriptors that must resolve to one
// catalog page together, so the group gets a mutually consistent version set.
type PackageGroup struct {
	Name        string              `json:"name"`
	Descriptors []ResolveDescriptor `json:"descriptors"`
}

// ResolveDescriptor is one package request inside a resolve call.
type ResolveDescriptor struct {
	InstallID          string   `json:"install_id"`
	AttrPath           string   `json:"attr_path"`
	Version            *string  `json:"version,omitempty"`
	Derivation         *string  `json:"derivation,omitempty"`
	AllowPreReleases   *bool    `json:"allow_pre_releases,omitempty"`
	AllowBroken        *bool    `json:"allow_broken,omitempty"`
	AllowUnfree        *bool    `json:"allow_unfree,omitempty"`
	AllowInsecure      *bool    `json:"allow_insecure,omitempty"`
	AllowMissingBuilds *bool    `json:"allow_missing_builds,omitempty"`
	AllowedLicenses    []string `json:"allowed_licenses,omitempty"`
	Systems            []string `json:"systems"`
}

// ResolvedPackageGroup is the catalog's answer for one PackageGroup. Page is
// nil when the group did not resolve at all.
type ResolvedPackageGroup struct {
	Name string              `json:"name"`
	Page *CatalogPage        `json:"page"`
	Msgs []ResolutionMessage `json:"msgs"`
}

// Packages returns the resolved packages, empty when there is no page.
func (g ResolvedPackageGroup) Packages() []PackageResolutionInfo {
	if g.Page == nil || g.Page.Packages == nil {
		return nil
	}
	return g.Page.Packages
}

// CatalogPage is a set of packages from a single catalog revision. Complete
// is false when not every requested system resolved onto this page.
type CatalogPage struct {
	Complete bool                    `json:"complete"`
	Packages []PackageResolutionInfo `json:"packages"`
	Page     int64                   `json:"page"`
	URL      string                  `json:"url"`
	Msgs     []ResolutionMessage     `json:"msgs"`
}

// PackageResolutionInfo is the full catalog record for one resolved package
// on one system.
type PackageResolutionInfo struct {
	Catalog          *string         `json:"catalog,omitempty"`
	AttrPath         string          `json:"attr_path"`
	PkgPath          string          `json:"pkg_path"`
	Broken           *bool           `json:"broken,omitempty"`
	Derivation       string          `json:"derivation"`
	Description      *string         `json:"description"`
	Insecure         *bool           `json:"insecure,omitempty"`
	InstallID        string          `json:"install_id"`
	License          *string         `json:"license"`
	LockedURL        string          `json:"locked_url"`
	Name             string          `json:"name"`
	Outputs          []PackageOutput `json:"outputs"`
	OutputsToInstall []string        `json:"outputs_to_install"`
	Pname            string          `json:"pname"`
	Rev              string          `json:"rev"`
	RevCount         int64           `json:"rev_count"`
	RevDate          time.Time       `json:"rev_date"`
	ScrapeDate       *time.Time      `json:"scrape_date"`
	Stabilities      []string        `json:"stabilities,omitempty"`
	Unfree           *bool           `json:"unfree,omitempty"`
	Version          string          `json:"version"`
	System           string          `json:"system"`
	CacheURI         *string         `json:"cache_uri,omitempty"`
	MissingBuilds    *bool           `json:"missing_builds,omitempty"`
}

// PackageOutput is a named output of a derivation.
type PackageOutput struct {
	Name      string `json:"name"`
	StorePath string `json:"store_path"`
}

// SearchResults is one page of packages matching a search term.
type SearchResults struct {
	Results []SearchResult `json:"items"`
	Count   *int64         `json:"total_count"`
}

// SearchResult is the abbreviated catalog record returned by search and
// version listings.
type SearchResult struct {
	Catalog     *string  `json:"catalog,omitempty"`
	AttrPath    string   `json:"attr_path"`
	PkgPath     string   `json:"pkg_path"`
	Name        string   `json:"name"`
	Pname       string   `json:"pname"`
	Version     string   `json:"version"`
	Description *string  `json:"description"`
	License     *string  `json:"license,omitempty"`
	System      string   `json:"system"`
	Stabilities []string `json:"stabilities,omitempty"`
}

// PackageDetails lists every known version of one attr path.
type PackageDetails struct {
	Results []SearchResult `json:"items"`
	Count   *int64         `json:"total_count"`
}

// MessageLevel is the severity the catalog assigned to a message.
type MessageLevel string

const (
	MessageLevelError   MessageLevel = "error"
	MessageLevelWarning MessageLevel = "warning"
	MessageLevelInfo    MessageLevel = "info"
	MessageLevelTrace   MessageLevel = "trace"
)

// MessageKind discriminates the typed resolution messages.
type MessageKind string

const (
	MessageKindGeneral               MessageKind = "general"
	MessageKindResolutionTrace       MessageKind = "resolution_trace"
	MessageKindNotInCatalog          MessageKind = "attr_path_not_found.not_in_catalog"
	MessageKindNotFoundForAllSystems MessageKind = "attr_path_not_found.not_found_for_all_systems"
	MessageKindSystemsNotOnSamePage  MessageKind = "attr_path_not_found.systems_not_on_same_page"
	MessageKindConstraintsTooTight   MessageKind = "constraints_too_tight"
	MessageKindUnknown               MessageKind = "unknown"
)

// ResolutionMessage is a typed message from the catalog about how (or why
// not) a group resolved. The service sends a generic envelope with a string
// type and a context map; NewResolutionMessage lifts the context fields the
// known kinds carry. Messages may be errors, but also purely informational.
type ResolutionMessage struct {
	Kind            MessageKind       `json:"kind"`
	Level           MessageLevel      `json:"level"`
	Msg             string            `json:"msg"`
	AttrPath        string            `json:"attr_path,omitempty"`
	InstallID       string            `json:"install_id,omitempty"`
	ValidSystems    []string          `json:"valid_systems,omitempty"`
	SystemGroupings string            `json:"system_groupings,omitempty"`
	MsgType         string            `json:"msg_type,omitempty"`
	Context         map[string]string `json:"context,omitempty"`
}

// NewResolutionMessage interprets a wire message envelope. Unrecognized
// types are preserved as MessageKindUnknown with the raw type and context so
// newer servers don't break older clients.
func NewResolutionMessage(msgType string, level MessageLevel, msg string, context map[string]string) ResolutionMessage {
	out := ResolutionMessage{Level: level, Msg: msg}
	switch MessageKind(msgType) {
	case MessageKindGeneral:
		out.Kind = MessageKindGeneral
	case MessageKindResolutionTrace:
		out.Kind = MessageKindGeneral
		out.Level = MessageLevelTrace
	case MessageKindNotInCatalog:
		out.Kind = MessageKindNotInCatalog
		out.AttrPath = context["attr_path"]
		out.InstallID = context["install_id"]
	case MessageKindNotFoundForAllSystems:
		out.Kind = MessageKindNotFoundForAllSystems
		out.AttrPath = context["attr_path"]
		out.InstallID = context["install_id"]
		out.ValidSystems = splitSystems(context["valid_systems"])
	case MessageKindSystemsNotOnSamePage:
		out.Kind = MessageKindSystemsNotOnSamePage
		out.AttrPath = context["attr_path"]
		out.InstallID = context["install_id"]
		out.SystemGroupings = context["system_groupings"]
	case MessageKindConstraintsTooTight:
		out.Kind = MessageKindConstraintsTooTight
	default:
		out.Kind = MessageKindUnknown
		out.MsgType = msgType
		out.Context = context
	}
	return out
}

// valid_systems arrives as a comma-joined string rather than an array.
func splitSystems(joined string) []string {
	if joined == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(joined, ",") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
