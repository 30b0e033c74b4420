package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthm/sqlstride/internal/update"
	"github.com/pthm/sqlstride/internal/version"
)

var versionCheck bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Example: `  # Print the version
  sqlstride version

  # Also check GitHub for a newer release
  sqlstride version --check`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version.Info())
		if !versionCheck {
			return nil
		}

		info, err := update.CheckWithCache(cmd.Context())
		if err != nil {
			logger.Warn("update check failed", "error", err)
			return nil
		}
		if info.UpdateAvailable {
			fmt.Printf("A newer version is available: %s (you have %s)\n", info.LatestVersion, info.CurrentVersion)
			if info.ReleaseURL != "" {
				fmt.Println(info.ReleaseURL)
			}
		} else {
			fmt.Println("You are on the latest version.")
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "check for a newer release")
}
