package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"codeshare/internal/client"
)

func signupCmd() *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register a new account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			if serverURL == "" {
				return errors.New("--server is required for signup")
			}
			c := client.New(serverURL, "")
			resp, err := c.Signup(context.Background(), username, email, password)
			if err != nil {
				return err
			}
			if err := saveCredentials(&credentials{
				Server:   serverURL,
				Token:    resp.AccessToken,
				UserID:   resp.User.ID,
				Username: resp.User.Username,
			}); err != nil {
				return err
			}
			fmt.Printf("Signed up as %s (%s)\n", resp.User.Username, resp.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&email, "email", "e", "", "email address")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the credential locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			if serverURL == "" {
				return errors.New("--server is required for login")
			}
			c := client.New(serverURL, "")
			resp, err := c.Login(context.Background(), email, password)
			if err != nil {
				return err
			}
			if err := saveCredentials(&credentials{
				Server:   serverURL,
				Token:    resp.AccessToken,
				UserID:   resp.User.ID,
				Username: resp.User.Username,
			}); err != nil {
				return err
			}
			fmt.Printf("Logged in as %s\n", resp.User.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email address")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the stored credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := apiClient()
			if err != nil {
				return err
			}
			if err := c.Logout(context.Background()); err != nil && !errors.Is(err, client.ErrUnauthorized) {
				return err
			}
			if err := clearCredentials(); err != nil {
				return err
			}
			fmt.Println("Logged out")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := apiClient()
			if err != nil {
				return err
			}
			user, err := c.Me(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("%s <%s> (id %s)\n", user.Username, user.Email, user.ID)
			return nil
		},
	}
}
