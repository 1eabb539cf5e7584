package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/tasktalk/internal/agent"
)

var askVerbose bool

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send one message and print the answer",
	Long: `Run a single conversational turn and print the assistant's answer.

Examples:
  tasktalk ask "add buy milk"
  tasktalk ask "what do I need to do for the trip?"
  tasktalk ask -v "delete the dentist task"   # show state transitions`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVarP(&askVerbose, "verbose", "v", false, "Print each state transition")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var observe agent.Observer
	if askVerbose {
		dim := color.New(color.FgHiBlack)
		observe = func(s agent.Step) {
			line := fmt.Sprintf("  %s --%s--> %s", s.From, s.Event, s.To)
			if len(s.Tools) > 0 {
				line += " [" + strings.Join(s.Tools, ", ") + "]"
			}
			dim.Fprintln(os.Stderr, line)
		}
	}

	sess := a.sessions.Create()
	defer a.sessions.Destroy(sess.ID)

	res, err := sess.HandleTurnStream(ctx, strings.Join(args, " "), observe)
	if err != nil {
		return err
	}

	fmt.Println(res.Answer)
	if askVerbose {
		color.New(color.FgHiBlack).Fprintf(os.Stderr, "  %d model call(s)\n", res.ModelCalls)
	}
	return nil
}
