package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xaenox/mailsift/internal/pipeline"
	"github.com/xaenox/mailsift/internal/queue"
	"go.uber.org/zap"
)

var enqueueFile string

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Push messages from a JSON file onto the Redis queue",
	RunE:  runEnqueue,
}

func init() {
	rootCmd.AddCommand(enqueueCmd)

	enqueueCmd.Flags().StringVarP(&enqueueFile, "file", "f", "", "Path to the messages file")
	enqueueCmd.MarkFlagRequired("file")
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Redis.URL == "" {
		return errors.New("redis.url (REDIS_URL) is required")
	}

	msgs, err := pipeline.LoadMessages(enqueueFile)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	q, err := queue.New(cfg.Redis.URL, cfg.Redis.Key, cfg.Worker.PollTimeout, logger)
	if err != nil {
		return err
	}
	defer q.Close()

	if err := q.Push(cmd.Context(), msgs...); err != nil {
		return err
	}
	depth, err := q.Depth(cmd.Context())
	if err != nil {
		return err
	}
	logger.Info("Messages enqueued", zap.Int("count", len(msgs)), zap.Int64("depth", depth))
	fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %d messages (queue depth %d)\n", len(msgs), depth)
	return nil
}
