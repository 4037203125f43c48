/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kvn147/Speak-Easy-Copy/internal/auth"
)

var (
	tokenUser string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a development access token",
	Long: `Issue an HS256 access token signed with SPEAKEASY_JWT_SIGNING_KEY.

The token authenticates the conversation API (Authorization: Bearer <token>) and may be
passed to the session websocket as ?token=<token>.

Examples:
  speakeasy token --user alice
  speakeasy token --user alice --ttl 1h
`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "User id the token identifies (required)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	token, err := issueToken(cfg.JWTSigningKey, tokenUser, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func issueToken(signingKey, user string, ttl time.Duration) (string, error) {
	if signingKey == "" {
		return "", errors.New("SPEAKEASY_JWT_SIGNING_KEY is not set")
	}
	if user == "" {
		return "", errors.New("--user is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("--ttl must be positive, got %s", ttl)
	}
	token, err := auth.Issue([]byte(signingKey), auth.Claims{UserID: user}, ttl)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}
