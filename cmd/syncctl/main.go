package main

import (
	"context"
	"fmt"
	"os"

	"github.com/MKhiriev/go-sync-store/internal/cli"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	cmd := cli.NewRootCommand()
	cmd.Version = buildInfo()

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}

func buildInfo() string {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	return fmt.Sprintf("%s (date: %s, commit: %s)", buildVersion, buildDate, buildCommit)
}
