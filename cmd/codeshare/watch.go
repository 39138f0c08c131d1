package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"codeshare/internal/client"
)

func watchCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch <session-id>",
		Short: "Follow a session live, printing code as other views save",
		Long: `watch opens a live view of a session and polls the server for
changes, printing the code body whenever another participant saves.
Interrupt (Ctrl-C) to close the view.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, creds, err := apiClient()
			if err != nil {
				return err
			}
			view, err := client.Open(context.Background(), c, args[0], client.ViewOptions{
				PollInterval: interval,
				Logf:         log.Printf,
			})
			if err != nil {
				if errors.Is(err, client.ErrNotFound) {
					return fmt.Errorf("session %s not found", args[0])
				}
				return err
			}
			defer view.Close()

			snap := view.Snapshot()
			fmt.Printf("Watching %q as %s. Ctrl-C to stop.\n", snap.Session.Title, creds.Username)
			fmt.Println(snap.Session.Code)
			lastSeen := snap.Session.UpdatedAt

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-sigCh:
					fmt.Println("\nClosing view.")
					return nil
				case <-ticker.C:
					snap := view.Snapshot()
					if snap.State == client.StateClosed {
						if err := view.Err(); err != nil {
							return err
						}
						return nil
					}
					if snap.Session.UpdatedAt.After(lastSeen) {
						lastSeen = snap.Session.UpdatedAt
						fmt.Printf("--- updated %s ---\n", lastSeen.Format("15:04:05"))
						fmt.Println(snap.Session.Code)
					}
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval")
	return cmd
}
