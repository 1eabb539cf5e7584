package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/tasktalk/internal/store"
	"github.com/ShayCichocki/tasktalk/internal/tools"
	"github.com/ShayCichocki/tasktalk/pkg/models"
)

var (
	tasksAddDescription string
	tasksExportFormat   string
	tasksSearchLimit    int
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage todos directly, without the model",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List todos, newest first",
	Args:  cobra.NoArgs,
	RunE: withStore(func(ctx context.Context, s *store.SQLiteStore, args []string) error {
		list, err := s.ListAll(ctx)
		if err != nil {
			return err
		}
		writeTasks(os.Stdout, list)
		return nil
	}),
}

var tasksAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a todo",
	Args:  cobra.MinimumNArgs(1),
	RunE: withStore(func(ctx context.Context, s *store.SQLiteStore, args []string) error {
		title, err := tools.ValidateTitle(strings.Join(args, " "))
		if err != nil {
			return err
		}
		var desc *string
		if tasksAddDescription != "" {
			desc = models.String(tasksAddDescription)
		}
		task, err := s.Insert(ctx, title, desc)
		if err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Created todo %d: %s", task.ID, task.Title), colorOK)
		return nil
	}),
}

var tasksDoneCmd = &cobra.Command{
	Use:     "done <id>",
	Aliases: []string{"rm", "delete"},
	Short:   "Remove a finished todo",
	Args:    cobra.ExactArgs(1),
	RunE: withStore(func(ctx context.Context, s *store.SQLiteStore, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid todo id %q", args[0])
		}
		task, err := s.Delete(ctx, id)
		if err != nil {
			return err
		}
		if task == nil {
			printStatus("✗", fmt.Sprintf("No todo found with ID %d", id), colorErr)
			return fmt.Errorf("todo %d not found", id)
		}
		printStatus("✓", fmt.Sprintf("Deleted todo %d: %s", task.ID, task.Title), colorOK)
		return nil
	}),
}

var tasksSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find todos by meaning",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		reg, err := newRegistry(cfg, s)
		if err != nil {
			return err
		}
		callArgs, _ := json.Marshal(map[string]interface{}{
			"query": strings.Join(args, " "),
			"limit": tasksSearchLimit,
		})
		res, err := reg.Execute(cmd.Context(), models.ToolCall{ID: "cli", Name: tools.NameSearch, Arguments: callArgs})
		if err != nil {
			return err
		}
		if !res.Success {
			return tools.ErrorFor(res)
		}
		writeHits(os.Stdout, res.Results)
		return nil
	},
}

var tasksExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write all todos as YAML or JSON",
	Args:  cobra.NoArgs,
	RunE: withStore(func(ctx context.Context, s *store.SQLiteStore, args []string) error {
		list, err := s.ListAll(ctx)
		if err != nil {
			return err
		}
		return exportTasks(os.Stdout, list, tasksExportFormat)
	}),
}

func init() {
	tasksAddCmd.Flags().StringVarP(&tasksAddDescription, "description", "d", "", "Optional description")
	tasksExportCmd.Flags().StringVarP(&tasksExportFormat, "format", "f", "yaml", "Output format: yaml or json")
	tasksSearchCmd.Flags().IntVarP(&tasksSearchLimit, "limit", "n", tools.DefaultSearchLimit, "Maximum results")

	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksAddCmd)
	tasksCmd.AddCommand(tasksDoneCmd)
	tasksCmd.AddCommand(tasksSearchCmd)
	tasksCmd.AddCommand(tasksExportCmd)
}

// withStore opens the configured store around fn.
func withStore(fn func(ctx context.Context, s *store.SQLiteStore, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(cmd.Context(), s, args)
	}
}

// exportRecord is the stable export shape of a todo.
type exportRecord struct {
	ID          int64  `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt   string `json:"created_at" yaml:"created_at"`
	UpdatedAt   string `json:"updated_at" yaml:"updated_at"`
}

func exportTasks(w io.Writer, tasks []models.Task, format string) error {
	records := make([]exportRecord, len(tasks))
	for i, t := range tasks {
		records[i] = exportRecord{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.DescriptionText(),
			CreatedAt:   t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			UpdatedAt:   t.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}

	switch strings.ToLower(format) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]interface{}{"todos": records}); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	default:
		return fmt.Errorf("unknown export format %q (want yaml or json)", format)
	}
}
