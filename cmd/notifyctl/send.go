package main

import (
	"encoding/json"
	"fmt"

	"sprinta/pkg/client"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <userId> <type> <title> <message>",
	Short: "Create a notification and push it to the user's live streams",
	Args:  cobra.ExactArgs(4),
	RunE:  runSend,
}

var sendMetadata string

func init() {
	sendCmd.Flags().StringVar(&sendMetadata, "metadata", "", "JSON object attached to the notification")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	req := client.SendRequest{
		UserID:  args[0],
		Type:    args[1],
		Title:   args[2],
		Message: args[3],
	}
	if sendMetadata != "" {
		if err := json.Unmarshal([]byte(sendMetadata), &req.Metadata); err != nil {
			return fmt.Errorf("--metadata: %w", err)
		}
	}

	res, err := newClient().Send(cmd.Context(), req)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if res.Skipped {
		fmt.Fprintf(out, "skipped: %s\n", res.Reason)
		return nil
	}
	fmt.Fprintf(out, "created notification %d\n", res.Notification.ID)
	return nil
}
