package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/stepwise/internal/catalog"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import questions from an .xlsx or .csv file",
	Long: "Import questions from a spreadsheet laid out as\n" +
		"topic | question | options | correct index | difficulty | hint.\n" +
		"Use the column flags for other layouts.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ic := catalog.DefaultImportConfig()
		ic.FilePath = args[0]
		f := cmd.Flags()
		ic.SheetName, _ = f.GetString("sheet")
		ic.Subject, _ = f.GetString("subject")
		ic.StartRow, _ = f.GetInt("start-row")
		ic.OptionSeparator, _ = f.GetString("separator")
		ic.TopicColumn, _ = f.GetString("topic-col")
		ic.TextColumn, _ = f.GetString("text-col")
		ic.OptionsColumn, _ = f.GetString("options-col")
		ic.CorrectColumn, _ = f.GetString("correct-col")
		ic.DifficultyColumn, _ = f.GetString("difficulty-col")
		ic.HintColumn, _ = f.GetString("hint-col")

		st, cfg, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		svc := catalog.New(st.Catalog(), newLogger(cfg.LogLevel, false))
		res, err := svc.Import(cmd.Context(), ic)
		if err != nil {
			return fmt.Errorf("import %s: %w", ic.FilePath, err)
		}

		fmt.Printf("Rows processed:  %d\n", res.TotalProcessed)
		fmt.Printf("Topics created:  %d\n", res.TopicsCreated)
		fmt.Printf("Questions added: %d\n", res.Created)
		fmt.Printf("Skipped:         %d\n", res.Skipped)
		if len(res.Errors) > 0 {
			fmt.Printf("\n%d rows failed:\n", len(res.Errors))
			for _, e := range res.Errors {
				fmt.Println("  " + e)
			}
		}
		return nil
	},
}

func init() {
	d := catalog.DefaultImportConfig()
	f := importCmd.Flags()
	f.String("sheet", d.SheetName, "Sheet name (xlsx only)")
	f.String("subject", d.Subject, "Subject of new topics")
	f.Int("start-row", d.StartRow, "First data row (1-based)")
	f.String("separator", d.OptionSeparator, "Separator between options")
	f.String("topic-col", d.TopicColumn, "Topic column")
	f.String("text-col", d.TextColumn, "Question text column")
	f.String("options-col", d.OptionsColumn, "Options column")
	f.String("correct-col", d.CorrectColumn, "Correct option index column")
	f.String("difficulty-col", d.DifficultyColumn, "Difficulty column")
	f.String("hint-col", d.HintColumn, "Hint column")
}
