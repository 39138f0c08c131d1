package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"codeshare/internal/models"
)

func listCmd() *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := apiClient()
			if err != nil {
				return err
			}
			page, err := c.ListSessions(context.Background(), limit, offset)
			if err != nil {
				return err
			}
			if len(page.Items) == 0 {
				fmt.Println("No sessions.")
				return nil
			}
			for _, s := range page.Items {
				fmt.Printf("%s  %-10s  %2d participant(s)  %s\n",
					s.ID, s.Language, s.ParticipantCount, s.Title)
			}
			fmt.Printf("Showing %d of %d\n", len(page.Items), page.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	return cmd
}

func createCmd() *cobra.Command {
	var title, description, language string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := apiClient()
			if err != nil {
				return err
			}
			s, err := c.CreateSession(context.Background(), title, description, models.Language(language))
			if err != nil {
				return err
			}
			fmt.Printf("Created session %s (%s)\n", s.ID, s.Language)
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "session title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "session description")
	cmd.Flags().StringVarP(&language, "language", "l", "python", "session language")
	cmd.MarkFlagRequired("title")
	return cmd
}

func showCmd() *cobra.Command {
	var codeOnly bool
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session; viewing joins you as a participant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := apiClient()
			if err != nil {
				return err
			}
			s, err := c.GetSession(context.Background(), args[0])
			if err != nil {
				return err
			}
			if codeOnly {
				fmt.Print(s.Code)
				if !strings.HasSuffix(s.Code, "\n") {
					fmt.Println()
				}
				return nil
			}
			fmt.Printf("Title:       %s\n", s.Title)
			if s.Description != "" {
				fmt.Printf("Description: %s\n", s.Description)
			}
			fmt.Printf("Language:    %s\n", s.Language)
			fmt.Printf("Created by:  %s at %s\n", s.CreatedBy, s.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("Updated at:  %s\n", s.UpdatedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("Participants (%d):\n", len(s.Participants))
			for _, p := range s.Participants {
				fmt.Printf("  %s (joined %s)\n", p.Username, p.JoinedAt.Format("2006-01-02 15:04:05"))
			}
			fmt.Println("Code:")
			fmt.Println(s.Code)
			return nil
		},
	}
	cmd.Flags().BoolVar(&codeOnly, "code", false, "print only the code body")
	return cmd
}

func saveCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "save <session-id>",
		Short: "Overwrite a session's code from a file (or stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := apiClient()
			if err != nil {
				return err
			}
			var data []byte
			if file == "" || file == "-" {
				data, err = io.ReadAll(os.Stdin)
			} else {
				data, err = os.ReadFile(file)
			}
			if err != nil {
				return fmt.Errorf("read code: %w", err)
			}
			code := string(data)
			s, err := c.UpdateSession(context.Background(), args[0], models.SessionUpdate{Code: &code})
			if err != nil {
				return err
			}
			fmt.Printf("Saved session %s (updated %s)\n", s.ID, s.UpdatedAt.Format("15:04:05"))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "file to read code from (default stdin)")
	return cmd
}

func runCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "run <session-id>",
		Short: "Execute a session's current code on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := apiClient()
			if err != nil {
				return err
			}
			s, err := c.GetSession(context.Background(), args[0])
			if err != nil {
				return err
			}
			result, err := c.Execute(context.Background(), s.ID, models.ExecutionRequest{
				Code:     s.Code,
				Language: s.Language,
				Input:    input,
			})
			if err != nil {
				return err
			}
			printResult(result)
			if !result.Success {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "stdin handed to the program")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session (creator only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := apiClient()
			if err != nil {
				return err
			}
			if err := c.DeleteSession(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted session %s\n", args[0])
			return nil
		},
	}
}

func printResult(result models.ExecutionResult) {
	if result.Output != "" {
		fmt.Print(result.Output)
		if !strings.HasSuffix(result.Output, "\n") {
			fmt.Println()
		}
	}
	if result.Success {
		fmt.Printf("ok (%dms)\n", result.DurationMS)
		return
	}
	if result.Error != "" {
		fmt.Fprintln(os.Stderr, "run failed:", result.Error)
	}
	fmt.Fprintf(os.Stderr, "exit code %d (%dms)\n", result.ExitCode, result.DurationMS)
}
