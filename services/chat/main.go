// Терминальный клиент переписки: открывает push-канал к выбранному собеседнику
// и печатает новые сообщения и уведомления.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tenantdesk/internal/logger"
	"github.com/tenantdesk/internal/model"
)

type options struct {
	api     string
	session string
	selfID  int64
	role    string
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Terminal client for admin <-> tenant conversations",
		Long: `chat connects to the conversation API, keeps a live stream to the selected
peer and prints incoming messages. Type /help after start for commands.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			role := model.ParseRole(opts.role)
			if role == "" {
				return fmt.Errorf("--role must be ADMIN or TENANT, got %q", opts.role)
			}
			if opts.selfID <= 0 {
				return fmt.Errorf("--self must be a positive user id")
			}
			if opts.session == "" {
				return fmt.Errorf("--session (or CHAT_SESSION) is required")
			}
			if opts.verbose {
				logger.SetLevel("debug")
			}
			return run(cmd.Context(), opts.api, opts.session, opts.selfID, role, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.Flags().StringVar(&opts.api, "api", envOr("CHAT_API", "http://localhost:8080"), "conversation API base URL")
	cmd.Flags().StringVar(&opts.session, "session", os.Getenv("CHAT_SESSION"), "session id (X-Session-Id)")
	cmd.Flags().Int64Var(&opts.selfID, "self", 0, "own user id")
	cmd.Flags().StringVar(&opts.role, "role", "", "own role: ADMIN or TENANT")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	logger.SetPrefix("chat")
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
