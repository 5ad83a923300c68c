package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xaenox/mailsift/internal/models"
	"github.com/xaenox/mailsift/internal/pipeline"
	"golang.org/x/sync/errgroup"
)

var (
	classifyFile    string
	classifyPersist bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify messages from a JSON file and print the outcomes",
	Long: `Read messages from a JSON file (an array, or one object per line),
run them through classification and extraction, and print one outcome per
line. Results are kept in memory unless --persist is set.`,
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().StringVarP(&classifyFile, "file", "f", "", "Path to the messages file")
	classifyCmd.Flags().BoolVar(&classifyPersist, "persist", false, "Store outcomes in the configured database")
	classifyCmd.MarkFlagRequired("file")
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !classifyPersist {
		cfg.Database.UseInMemory = true
	}

	msgs, err := pipeline.LoadMessages(classifyFile)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return errors.New("no messages in " + classifyFile)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	outcomes := make([]models.Outcome, len(msgs))
	var g errgroup.Group
	g.SetLimit(cfg.Worker.Concurrency)
	for i, msg := range msgs {
		i, msg := i, msg
		g.Go(func() error {
			out, err := a.processor.Process(ctx, msg)
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	for _, out := range outcomes {
		if err := enc.Encode(struct {
			MessageID   string                    `json:"message_id"`
			Verdict     models.Verdict            `json:"verdict"`
			Extractions []models.ExtractionResult `json:"extractions,omitempty"`
		}{out.Message.ID, out.Verdict, out.Extractions}); err != nil {
			return fmt.Errorf("write outcome: %w", err)
		}
	}
	return nil
}
