// Command jobqueued runs the durable job queue HTTP service.
package main

import "github.com/3leaps/jobqueue/internal/cmd"

var (
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	cmd.Execute()
}
