package cmd

import (
	"fmt"

	"go-phishguard/pkg/analyzer"
	"go-phishguard/pkg/config"

	"github.com/spf13/cobra"
)

var blacklistCmd = &cobra.Command{
	Use:   "blacklist",
	Short: "Manage the known phishing domain blacklist",
}

var blacklistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List blacklisted domains",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bl := analyzer.NewBlacklist(config.GlobalConfig.Blacklist.Path)
		for _, d := range bl.List() {
			fmt.Fprintln(cmd.OutOrStdout(), d)
		}
		return nil
	},
}

var blacklistAddCmd = &cobra.Command{
	Use:   "add <domain>...",
	Short: "Add domains to the blacklist",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bl := analyzer.NewBlacklist(config.GlobalConfig.Blacklist.Path)
		for _, d := range args {
			if bl.Add(d) {
				fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", d)
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s (already listed or save failed)\n", d)
			}
		}
		return nil
	},
}

var blacklistRemoveCmd = &cobra.Command{
	Use:   "remove <domain>...",
	Short: "Remove domains from the blacklist",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bl := analyzer.NewBlacklist(config.GlobalConfig.Blacklist.Path)
		for _, d := range args {
			if bl.Remove(d) {
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", d)
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s (not listed or save failed)\n", d)
			}
		}
		return nil
	},
}

func init() {
	blacklistCmd.AddCommand(blacklistListCmd, blacklistAddCmd, blacklistRemoveCmd)
}
