package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tilebridge/pkg/config"
	"tilebridge/pkg/gateway"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a gateway token signed with gateway.secret",
	Long: `Issue an HS256 token for script clients. Pass it as ?token=<token> on
the WebSocket URL or as an Authorization: Bearer header.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewLoader().Load(configPath)
		if err != nil {
			return err
		}
		token, err := gateway.IssueToken(cfg.Gateway.Secret, tokenSubject, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "kwin-script", "token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (0 = no expiry)")
	rootCmd.AddCommand(tokenCmd)
}
