package main

import (
	"fmt"
	"os"

	"github.com/crucial707/dbkeeper/cmd/cli/auth"
	"github.com/crucial707/dbkeeper/cmd/cli/files"
	"github.com/crucial707/dbkeeper/cmd/cli/jobs"
	"github.com/crucial707/dbkeeper/cmd/cli/root"
)

func main() {
	rootCmd := root.GetRoot()
	auth.InitAuth(rootCmd)
	jobs.InitJobs(rootCmd)
	files.InitFiles(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
