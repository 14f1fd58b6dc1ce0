// Package buildinfo reports the ldflags-injected build metadata.
package buildinfo

import "go.uber.org/zap"

// Info is the build metadata of a binary.
type Info struct {
	Version string
	Date    string
	Commit  string
}

// New fills empty fields with "N/A".
func New(version, date, commit string) Info {
	return Info{Version: orNA(version), Date: orNA(date), Commit: orNA(commit)}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// Log writes the build metadata as one structured line.
func (i Info) Log(logger *zap.SugaredLogger) {
	logger.Infow("build info",
		"version", i.Version,
		"date", i.Date,
		"commit", i.Commit,
	)
}
