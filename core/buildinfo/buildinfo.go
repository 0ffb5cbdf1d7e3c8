package buildinfo

// These variables are intended to be set via -ldflags at build time:
//
//	-X 'github.com/m3rciful/sushef/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/sushef/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/sushef/core/buildinfo.Date=2026-10-14T12:00:00Z'
var (
	// Version reports the semantic version or tag of the build.
	Version = "dev"
	// Commit reports the source control commit used for the build.
	Commit = "local"
	// Date reports the build timestamp in RFC3339 format.
	Date = ""
)

// String renders a one-line build summary for the version command.
func String() string {
	s := Version + " (commit " + Commit
	if Date != "" {
		s += ", built " + Date
	}
	return s + ")"
}
