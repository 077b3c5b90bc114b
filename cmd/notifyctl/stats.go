package main

import (
	"fmt"
	"sort"

	"sprinta/pkg/client"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show live connection counts",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var listCmd = &cobra.Command{
	Use:   "list <userId>",
	Short: "List a user's notifications, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

var listUnread bool

func init() {
	listCmd.Flags().BoolVar(&listUnread, "unread", false, "only unread notifications")
	rootCmd.AddCommand(statsCmd, listCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	stats, err := newClient().Stats(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "clients: %d\nusers:   %d\n", stats.TotalClients, stats.TotalUsers)

	users := make([]string, 0, len(stats.ClientsByUser))
	for u := range stats.ClientsByUser {
		users = append(users, u)
	}
	sort.Strings(users)
	for _, u := range users {
		fmt.Fprintf(out, "  %-24s %d\n", u, stats.ClientsByUser[u])
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	list, err := newClient().List(cmd.Context(), args[0], client.ListOptions{UnreadOnly: listUnread})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, n := range list {
		mark := " "
		if !n.Read {
			mark = "*"
		}
		fmt.Fprintf(out, "%s %d  %-28s %s\n", mark, n.ID, n.Type, n.Title)
	}
	return nil
}
