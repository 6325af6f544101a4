package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/lowbac/app"
	"github.com/kilianp07/lowbac/core/command"
)

var commandUser string

var commandCmd = &cobra.Command{
	Use:       "command <unlock|start|status>",
	Short:     "Authorize and send a single command to the vehicle",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"unlock", "start", "status"},
	RunE:      runCommand,
}

func init() {
	commandCmd.Flags().StringVarP(&commandUser, "user", "u", "", "user key resolving the vehicle")
	rootCmd.AddCommand(commandCmd)
}

func runCommand(cmd *cobra.Command, args []string) error {
	intent, err := command.ParseIntent(args[0])
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	if _, err := svc.Authorize(ctx); err != nil {
		return fatal(err)
	}
	user := commandUser
	if user == "" {
		user = cfg.Session.DefaultUser
	}
	res, err := svc.Relay().Command(ctx, intent, user)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	return nil
}
