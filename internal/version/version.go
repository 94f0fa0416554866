// Package version provides centralized version information for livecheck.
// The client version is sent with every analysis request.
package version

// These variables can be overridden at build time using ldflags:
// go build -ldflags "-X livecheck/internal/version.Version=1.0.0 -X livecheck/internal/version.Commit=abc123"
var (
	// Version is the semantic version of the livecheck client
	Version = "1.4.0"

	// Commit is the git commit hash (set at build time)
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time)
	BuildDate = "unknown"
)

// ClientName identifies this client to the analysis service.
const ClientName = "livecheck-go"

// Info returns a formatted version string
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// UserAgent returns the User-Agent header value for outgoing requests.
func UserAgent() string {
	return ClientName + "/" + Version
}

// Full returns complete version information
func Full() string {
	return "livecheck version " + Version + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate
}
