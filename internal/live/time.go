package live

import (
	"strings"
	"time"

	"github.com/HendryAvila/tracky/internal/project"
)

// timeNow is a package-level variable for testability.
var timeNow = time.Now

func timestamp() string {
	return timeNow().UTC().Format(project.TimestampLayout)
}

func schemeOf(uri string) string {
	scheme, _, _ := strings.Cut(uri, "://")
	return scheme
}
