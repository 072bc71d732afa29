package mockgateway

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var Routes = []Route{
	RouteHealth,
	RouteCreateProject,
	RouteListProjects,
	RouteGetProject,
	RouteUpdateProject,
	RouteDeleteProject,
	RouteCreateAvatar,
	RouteListAvatars,
	RouteGenerateOffer,
	RouteGenerateMats,
	RouteGenerateLanding,
	RouteExport,
	RoutePrice,
	RouteMetrics,
}

// ParseFailure reads "route[=status[xtimes]]", e.g. "generate_offer=500", "export=0x1".
// A missing status means HTTP 500; status 0 answers success=false.
func ParseFailure(spec string) (Route, Failure, error) {
	name, rest, hasStatus := strings.Cut(strings.TrimSpace(spec), "=")
	route := Route(strings.TrimSpace(name))
	known := false
	for _, r := range Routes {
		if r == route {
			known = true
			break
		}
	}
	if !known {
		return "", Failure{}, errors.Errorf("unknown route %q", name)
	}

	f := Failure{Status: 500}
	if !hasStatus {
		return route, f, nil
	}
	status, times, hasTimes := strings.Cut(rest, "x")
	code, err := strconv.Atoi(strings.TrimSpace(status))
	if err != nil || (code != 0 && (code < 400 || code > 599)) {
		return "", Failure{}, errors.Errorf("invalid status in %q", spec)
	}
	f.Status = code
	if hasTimes {
		n, err := strconv.Atoi(strings.TrimSpace(times))
		if err != nil || n < 0 {
			return "", Failure{}, errors.Errorf("invalid count in %q", spec)
		}
		f.Times = n
	}
	return route, f, nil
}
