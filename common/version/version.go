package version

// Build info - set at build time via ldflags:
// go build -ldflags "-X github.com/mordilloSan/accountctl/common/version.Version=v1.0.0"
var (
	Version   = "untracked"
	CommitSHA = "untracked"
	BuildTime = "unknown"
)
