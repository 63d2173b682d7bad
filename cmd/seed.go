package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/stepwise/internal/catalog"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the default topics and questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, cfg, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		svc := catalog.New(st.Catalog(), newLogger(cfg.LogLevel, false))
		res, err := svc.Seed(cmd.Context())
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		fmt.Printf("Seeded %d topics and %d questions.\n", res.TopicsCreated, res.QuestionsCreated)
		return nil
	},
}
