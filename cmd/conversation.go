package cmd

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/jywlabs/prdforge/internal/conversation"
	"github.com/jywlabs/prdforge/internal/display"
	"github.com/spf13/cobra"
)

var conversationRecent int

var conversationCmd = &cobra.Command{
	Use:     "conversation",
	Aliases: []string{"conv"},
	Short:   "Inspect saved refinement conversations",
	Long: `Inspect the conversations kept by 'prdforge refine'.

Every refinement records its questions, answers, state and iteration count.
A paused conversation can be resumed with 'prdforge refine <doc> --conversation <id>'.

The store is configured in .prdforge/config.yaml (store.backend: file,
sqlite, libsql or pgx).`,
}

var conversationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, store conversation.Store) error {
			return runConversationList(ctx, store, os.Stdout)
		})
	},
}

var conversationShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show every question and answer of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, store conversation.Store) error {
			return runConversationShow(ctx, store, args[0], os.Stdout)
		})
	},
}

var conversationSummaryCmd = &cobra.Command{
	Use:   "summary <id>",
	Short: "Show the compact summary passed to the AI engine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, store conversation.Store) error {
			return runConversationSummary(ctx, store, args[0], conversationRecent, os.Stdout)
		})
	},
}

var conversationDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, store conversation.Store) error {
			if err := store.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted conversation %s\n", args[0])
			return nil
		})
	},
}

func init() {
	conversationSummaryCmd.Flags().IntVar(&conversationRecent, "recent", 5, "Items kept verbatim; older ones are digested")
	conversationCmd.AddCommand(conversationListCmd, conversationShowCmd, conversationSummaryCmd, conversationDeleteCmd)
	rootCmd.AddCommand(conversationCmd)
}

// withStore opens the project's store for the duration of fn.
func withStore(ctx context.Context, fn func(context.Context, conversation.Store) error) error {
	s, err := openSession(ctx, ".")
	if err != nil {
		return err
	}
	defer s.close()

	store, err := s.requireStore()
	if err != nil {
		return err
	}
	return fn(ctx, store)
}

func runConversationList(ctx context.Context, store conversation.Store, w io.Writer) error {
	list, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "No conversations yet. Run 'prdforge refine <doc>' to start one.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMODE\tSTATE\tITERATION\tANSWERS\tUPDATED")
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d/%d\t%s\n",
			c.ID, c.Mode, c.State, c.Iteration, c.AnswerCount, c.QuestionCount, c.UpdatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func runConversationShow(ctx context.Context, store conversation.Store, id string, w io.Writer) error {
	c, err := store.GetContext(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s %s\n", display.StyleCommandIcon.String(), display.StyleTitle.Render("Conversation "+c.ID))
	fmt.Fprintf(w, "  mode: %s  state: %s  iteration: %d\n", c.Mode, c.State, c.Iteration)
	for _, k := range slices.Sorted(maps.Keys(c.Context)) {
		fmt.Fprintf(w, "  %s: %s\n", k, c.Context[k])
	}
	fmt.Fprintln(w)

	for i, it := range c.Items {
		fmt.Fprintf(w, "%d. %s\n", i+1, it.Question.Text)
		switch {
		case it.Answer == nil:
			fmt.Fprintf(w, "   %s\n", display.StyleMuted.Render("(unanswered)"))
		case it.Answer.Skipped:
			fmt.Fprintf(w, "   %s\n", display.StyleMuted.Render("(skipped)"))
		default:
			fmt.Fprintf(w, "   %s\n", display.StyleSuccess.Render(it.Answer.Value.String()))
		}
	}
	return nil
}

func runConversationSummary(ctx context.Context, store conversation.Store, id string, recent int, w io.Writer) error {
	sum, err := store.Summarize(ctx, id, recent)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Conversation %s (%s, %s, iteration %d, %d items)\n", sum.ID, sum.Mode, sum.State, sum.Iteration, sum.TotalItems)
	if sum.Digest != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Earlier:")
		fmt.Fprintln(w, sum.Digest)
	}
	if len(sum.Recent) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Recent:")
		for _, it := range sum.Recent {
			answer := "(unanswered)"
			if it.Answer != nil {
				answer = it.Answer.Value.String()
				if it.Answer.Skipped {
					answer = "(skipped)"
				}
			}
			fmt.Fprintf(w, "  Q: %s\n  A: %s\n", it.Question.Text, answer)
		}
	}
	return nil
}
