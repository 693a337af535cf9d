package live

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/HendryAvila/tracky/internal/project"
)

// Resource schemes served by the builder.
const (
	SchemeProject   = "project"
	SchemeDashboard = "dashboard"
	SchemeMetrics   = "metrics"
	SchemeEvents    = "events"
)

// qualifiers maps each scheme to the fixed host segment its URIs carry.
// Project URIs have none: the PRD id is the host itself.
var qualifiers = map[string]string{
	SchemeDashboard: "assignee",
	SchemeMetrics:   "burndown",
	SchemeEvents:    "project",
}

// ResourceURI is a parsed resource identifier.
type ResourceURI struct {
	Raw    string
	Scheme string
	// Key is the PRD id (project, metrics, events) or assignee name (dashboard).
	Key    string
	Params url.Values
}

// ProjectURI returns project://{prdID}.
func ProjectURI(prdID string) string { return SchemeProject + "://" + prdID }

// DashboardURI returns dashboard://assignee/{name}.
func DashboardURI(assignee string) string { return SchemeDashboard + "://assignee/" + assignee }

// MetricsURI returns metrics://burndown/{prdID}.
func MetricsURI(prdID string) string { return SchemeMetrics + "://burndown/" + prdID }

// EventsURI returns events://project/{prdID}.
func EventsURI(prdID string) string { return SchemeEvents + "://project/" + prdID }

// ParseURI splits a resource identifier into scheme, key and query params.
//
// Unknown schemes and mismatched qualifiers are ErrNotFound. A missing key
// is ErrBadInput, except for project URIs: an empty project key reads every
// project and is rejected later by the builder's single-result check.
func ParseURI(raw string) (ResourceURI, error) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok || scheme == "" {
		return ResourceURI{}, fmt.Errorf("%w: malformed resource URI %q", project.ErrBadInput, raw)
	}

	rest, query, _ := strings.Cut(rest, "?")
	rest, _, _ = strings.Cut(rest, "#")
	params, err := url.ParseQuery(query)
	if err != nil {
		return ResourceURI{}, fmt.Errorf("%w: resource URI %q: %v", project.ErrBadInput, raw, err)
	}

	host, path, _ := strings.Cut(rest, "/")
	u := ResourceURI{Raw: raw, Scheme: scheme, Params: params}

	switch scheme {
	case SchemeProject:
		u.Key, err = url.PathUnescape(host)
	case SchemeDashboard, SchemeMetrics, SchemeEvents:
		if host != qualifiers[scheme] {
			return ResourceURI{}, fmt.Errorf("%w: unknown %s resource %q", project.ErrNotFound, scheme, raw)
		}
		segment, _, _ := strings.Cut(path, "/")
		u.Key, err = url.PathUnescape(segment)
		if err == nil && u.Key == "" {
			return ResourceURI{}, fmt.Errorf("%w: resource URI %q has no key", project.ErrBadInput, raw)
		}
	default:
		return ResourceURI{}, fmt.Errorf("%w: unknown resource type %q", project.ErrNotFound, scheme)
	}
	if err != nil {
		return ResourceURI{}, fmt.Errorf("%w: resource URI %q: %v", project.ErrBadInput, raw, err)
	}
	return u, nil
}
