package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilianp07/lowbac/core/decoder"
	"github.com/kilianp07/lowbac/core/model"
	"github.com/kilianp07/lowbac/core/trigger"
	"github.com/kilianp07/lowbac/infra/logger"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <hex bytes...>",
	Short: "Decode a webhook payload and show which triggers it fires",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	var rules []trigger.Rule
	if cmd.Flags().Changed("config") {
		cfg, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()
		if rules, err = trigger.ParseRules(cfg.Triggers); err != nil {
			return err
		}
	} else {
		rules = trigger.DefaultRules
	}

	ev, err := decoder.Decode(strings.Join(args, " "))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "source %s\n", ev.Source())
	in := trigger.NewInterpreter(rules, logger.NopLogger{}, func(_ model.Event, sig model.Signal) {
		fmt.Fprintf(out, "  %s\n", sig)
	})
	fired := in.FindTriggers(ev)
	if len(fired) == 0 {
		fmt.Fprintln(out, "no triggers fired")
	}
	for _, r := range fired {
		fmt.Fprintf(out, "fires %s -> %s\n", r.Trigger, r.Intent)
	}
	return nil
}
