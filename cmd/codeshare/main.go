// Package main provides the codeshare CLI, a terminal client for the
// session service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var serverURL string

func main() {
	rootCmd := &cobra.Command{
		Use:   "codeshare",
		Short: "Collaborative code session client",
		Long: `codeshare: terminal client for the collaborative code session service.

Sign up or log in once; the credential is stored in a local file and
used for every later command. The watch command keeps a live view of a
session in sync with the server.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server base URL (defaults to the saved credential's server)")

	rootCmd.AddCommand(
		signupCmd(),
		loginCmd(),
		logoutCmd(),
		whoamiCmd(),
		listCmd(),
		createCmd(),
		showCmd(),
		saveCmd(),
		runCmd(),
		watchCmd(),
		deleteCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
