package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ebaz7/lepan-crm-sub000/internal/infrastructure/directory"
	httpapi "github.com/ebaz7/lepan-crm-sub000/internal/interfaces/http"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// tokenCmd issues a bearer token for a configured actor
var tokenCmd = &cobra.Command{
	Use:   "token <actor-id>",
	Short: "Issue a bearer token for an actor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cc := cfg.ToContainerConfig()

		roles, err := directory.NewStaticDirectory(cc.Actors)
		if err != nil {
			return err
		}
		role, err := roles.GetRole(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		ttl, _ := cmd.Flags().GetDuration("ttl")
		auth := httpapi.NewAuthenticator(httpapi.AuthConfig{
			Enabled: true,
			Secret:  cc.Auth.JWTSecret,
			Issuer:  cc.Auth.Issuer,
		}, roles, nopLogger{})

		token, err := auth.IssueToken(args[0], ttl)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "actor %s (%s), expires in %s\n", args[0], role, ttl)
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Duration("ttl", 12*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
