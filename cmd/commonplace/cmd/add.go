package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/commonplacehq/commonplace/internal/config"
	"github.com/commonplacehq/commonplace/internal/queue"
	"github.com/commonplacehq/commonplace/internal/store"
)

func newAddCmd() *cobra.Command {
	var author string
	var source string
	var file string

	cmd := &cobra.Command{
		Use:   "add [text]",
		Short: "Add a quote or note to the index",
		Long: `Add indexes a new entry. Text is taken from the argument, from
--file, or from stdin. Long documents are chunked automatically.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(args, file)
			if err != nil {
				return err
			}
			return runAdd(cmd, text, author, source)
		},
	}

	cmd.Flags().StringVarP(&author, "author", "a", "", "Author or attribution")
	cmd.Flags().StringVarP(&source, "source", "s", "", "Source (book, article, URL)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read text from a file")

	return cmd
}

func readText(args []string, file string) (string, error) {
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case len(args) == 1:
		return args[0], nil
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

func runAdd(cmd *cobra.Command, text, author, source string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no text given: pass an argument, --file, or pipe to stdin")
	}

	ctx := cmd.Context()
	orch, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer orch.Close()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	now := time.Now()
	doc := store.Document{
		ID:        uuid.NewString(),
		Author:    author,
		Source:    source,
		Content:   text,
		CreatedAt: now,
		UpdatedAt: now,
	}

	q := queue.New(orch, queueConfig(cfg), nil)
	q.Start(ctx)
	if _, err := q.QueueIndexing([]store.Document{doc}, queue.JobInitial); err != nil {
		q.Stop()
		return err
	}
	q.Stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %s\n", doc.ID)
	return nil
}

func queueConfig(cfg config.Config) queue.Config {
	return queue.Config{
		Workers:    cfg.Queue.Workers,
		BufferSize: cfg.Queue.BufferSize,
	}
}
