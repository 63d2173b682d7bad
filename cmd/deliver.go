package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/stepwise/internal/delivery"
)

var deliverCmd = &cobra.Command{
	Use:   "deliver",
	Short: "Send pending parent summaries once",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, cfg, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		logger := newLogger(cfg.LogLevel, false)
		var notifier delivery.Notifier
		if cfg.TelegramToken != "" {
			tn, err := delivery.NewTelegramNotifier(cfg.TelegramToken)
			if err != nil {
				return err
			}
			notifier = tn
		}

		res, err := delivery.New(st, notifier, logger).DeliverPending(cmd.Context())
		fmt.Printf("Sent %d summaries, %d failed.\n", res.Sent, res.Failed)
		return err
	},
}
