package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"sprinta/pkg/client"

	"github.com/spf13/cobra"
)

var listenCmd = &cobra.Command{
	Use:   "listen <userId>",
	Short: "Print events from a user's stream until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE:  runListen,
}

var listenHeartbeats bool

func init() {
	listenCmd.Flags().BoolVar(&listenHeartbeats, "heartbeats", false, "also print heartbeat events")
	rootCmd.AddCommand(listenCmd)
}

func runListen(cmd *cobra.Command, args []string) error {
	sub, err := newClient().Subscribe(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer sub.Close()

	out := cmd.OutOrStdout()
	for {
		ev, err := sub.Next()
		if err != nil {
			if errors.Is(err, io.EOF) || cmd.Context().Err() != nil {
				return nil
			}
			return err
		}
		switch ev.Name {
		case "heartbeat":
			if !listenHeartbeats {
				continue
			}
			var hb client.Heartbeat
			if err := ev.Decode(&hb); err == nil {
				fmt.Fprintf(out, "%-13s server time %s\n", ev.Name, hb.Timestamp.Local().Format(time.RFC3339))
				continue
			}
		case "connected":
			var hello client.Connected
			if err := ev.Decode(&hello); err == nil {
				fmt.Fprintf(out, "%-13s client %s for user %s at %s\n", ev.Name, hello.ClientID, hello.UserID, hello.Timestamp.Local().Format(time.RFC3339))
				continue
			}
		}
		fmt.Fprintf(out, "%-13s %s\n", ev.Name, ev.Data)
	}
}
