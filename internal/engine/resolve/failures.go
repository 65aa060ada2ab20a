package resolve

import (
	"fmt"
	"sort"
	"strings"

	"go.trai.ch/floe/internal/core/domain"
)

// FailureKind discriminates resolution failures.
type FailureKind string

const (
	// FailurePackageNotFound: the attr path is not in the catalog at all.
	FailurePackageNotFound FailureKind = "package_not_found"
	// FailurePackageUnavailableOnSomeSystems: the package exists but not for
	// every requested system.
	FailurePackageUnavailableOnSomeSystems FailureKind = "package_unavailable_on_some_systems"
	// FailureSystemsNotOnSamePage: no single catalog page covers all
	// requested systems.
	FailureSystemsNotOnSamePage FailureKind = "systems_not_on_same_page"
	// FailureConstraintsTooTight: the group's version constraints can't be
	// satisfied by one page.
	FailureConstraintsTooTight FailureKind = "constraints_too_tight"
	// FailureUnknownServiceMessage: an error message of a type this client
	// doesn't know yet.
	FailureUnknownServiceMessage FailureKind = "unknown_service_message"
	// FailureFallbackMessage: a plain message with no structured context.
	FailureFallbackMessage FailureKind = "fallback_message"
)

// ResolutionFailure is one reason a group failed to resolve, carrying the
// catalog's message plus context recovered from the manifest.
type ResolutionFailure struct {
	Kind            FailureKind
	Msg             string
	AttrPath        string
	InstallID       string
	Group           string
	ValidSystems    []string
	InvalidSystems  []string
	SystemGroupings string
	MsgType         string
}

// ResolutionFailedError reports every failure of a resolution request
// together, so the user doesn't fix one only to discover the next.
type ResolutionFailedError struct {
	Failures []ResolutionFailure
}

func (e *ResolutionFailedError) Error() string {
	if len(e.Failures) == 1 {
		return formatFailure(e.Failures[0])
	}
	lines := make([]string, 0, len(e.Failures)+1)
	lines = append(lines, "resolution failed:")
	for _, failure := range e.Failures {
		lines = append(lines, "- "+formatFailure(failure))
	}
	return strings.Join(lines, "\n")
}

func formatFailure(f ResolutionFailure) string {
	switch f.Kind {
	case FailurePackageNotFound:
		return fmt.Sprintf("could not find package '%s'", f.AttrPath)
	case FailurePackageUnavailableOnSomeSystems:
		return fmt.Sprintf("package '%s' not available for %s, but it is available for %s",
			f.AttrPath, joinSorted(f.InvalidSystems), joinSorted(f.ValidSystems))
	case FailureSystemsNotOnSamePage:
		return fmt.Sprintf("package '%s' is not available for all requested systems on the same page (suggested groupings: %s)",
			f.AttrPath, f.SystemGroupings)
	case FailureConstraintsTooTight:
		return fmt.Sprintf("constraints for group '%s' are too tight", f.Group)
	case FailureUnknownServiceMessage, FailureFallbackMessage:
		return f.Msg
	}
	return f.Msg
}

func joinSorted(systems []string) string {
	sorted := make([]string, len(systems))
	copy(sorted, systems)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}

// failureFromMessage maps one catalog error message to a failure.
func failureFromMessage(msg domain.ResolutionMessage, group string, invalidSystems []string) ResolutionFailure {
	switch msg.Kind {
	case domain.MessageKindNotInCatalog:
		return ResolutionFailure{
			Kind:      FailurePackageNotFound,
			Msg:       msg.Msg,
			AttrPath:  msg.AttrPath,
			InstallID: msg.InstallID,
		}
	case domain.MessageKindNotFoundForAllSystems:
		return ResolutionFailure{
			Kind:           FailurePackageUnavailableOnSomeSystems,
			Msg:            msg.Msg,
			AttrPath:       msg.AttrPath,
			InstallID:      msg.InstallID,
			ValidSystems:   msg.ValidSystems,
			InvalidSystems: invalidSystems,
		}
	case domain.MessageKindSystemsNotOnSamePage:
		return ResolutionFailure{
			Kind:            FailureSystemsNotOnSamePage,
			Msg:             msg.Msg,
			AttrPath:        msg.AttrPath,
			InstallID:       msg.InstallID,
			SystemGroupings: msg.SystemGroupings,
		}
	case domain.MessageKindConstraintsTooTight:
		return ResolutionFailure{
			Kind:  FailureConstraintsTooTight,
			Msg:   msg.Msg,
			Group: group,
		}
	case domain.MessageKindUnknown:
		return ResolutionFailure{
			Kind:    FailureUnknownServiceMessage,
			Msg:     msg.Msg,
			MsgType: msg.MsgType,
		}
	}
	return ResolutionFailure{Kind: FailureFallbackMessage, Msg: msg.Msg}
}
