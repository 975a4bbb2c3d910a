package tag

import "strings"

// ManifestElement identifies what a manifest catalog capture describes.
type ManifestElement string

const (
	ManifestComponentName    ManifestElement = "component.name"
	ManifestComponentVersion ManifestElement = "component.version"
	ManifestDependency       ManifestElement = "dependency"
	ManifestWorkspaceMember  ManifestElement = "workspace.member"
	ManifestWorkspaceRoot    ManifestElement = "workspace.root"
)

// ManifestTag is a parsed manifest catalog tag, e.g.
// "manifest.dependency.scope.dev".
type ManifestTag struct {
	Element ManifestElement
	Scope   string // dependency scope: "dev", "build", or empty for runtime
}

const ReasonUnknownManifestElement = "unknown manifest element"

// IsManifestTag reports whether a raw capture name is a manifest tag.
func IsManifestTag(raw string) bool {
	return strings.HasPrefix(strings.TrimPrefix(raw, "@"), "manifest.")
}

// ParseManifest parses a "manifest.*" tag.
func ParseManifest(raw string) (ManifestTag, error) {
	s := strings.TrimPrefix(raw, "@")
	parts := strings.Split(s, ".")
	if len(parts) < 2 || parts[0] != "manifest" {
		return ManifestTag{}, &ParseError{Tag: raw, Reason: ReasonTooShort}
	}

	rest := parts[1:]
	var mt ManifestTag

	// Trailing scope pair applies only to dependencies.
	if n := len(rest); n >= 2 && rest[n-2] == "scope" {
		mt.Scope = rest[n-1]
		rest = rest[:n-2]
	}

	switch ManifestElement(strings.Join(rest, ".")) {
	case ManifestComponentName:
		mt.Element = ManifestComponentName
	case ManifestComponentVersion:
		mt.Element = ManifestComponentVersion
	case ManifestDependency:
		mt.Element = ManifestDependency
	case ManifestWorkspaceMember:
		mt.Element = ManifestWorkspaceMember
	case ManifestWorkspaceRoot:
		mt.Element = ManifestWorkspaceRoot
	default:
		return ManifestTag{}, &ParseError{Tag: raw, Reason: ReasonUnknownManifestElement}
	}
	return mt, nil
}
