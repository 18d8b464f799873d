package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/vocadeck/internal/domain"
	"github.com/conorfennell/vocadeck/internal/review"
)

func newWordCmd(a *app) *cobra.Command {
	word := &cobra.Command{
		Use:   "word",
		Short: "Inspect and manage the words of a deck",
	}

	list := &cobra.Command{
		Use:   "list <deck>",
		Short: "List the words of a deck",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			words, err := a.store.ListWords(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TERM\tMEANINGS\tS→N\tN→S")
			for _, entry := range words {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", entry.Term, strings.Join(entry.Meanings, "; "),
					score(entry.ReviewStats[domain.StudyToNative]), score(entry.ReviewStats[domain.NativeToStudy]))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d word(s).\n", len(words))
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <deck> <term>",
		Short: "Show a word and its review stats",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := a.store.GetWord(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if entry == nil {
				return fmt.Errorf("word %s: %w", args[1], review.ErrUnknownWord)
			}
			printWord(cmd.OutOrStdout(), entry)
			return nil
		},
	}

	var (
		meanings []string
		example  string
	)
	edit := &cobra.Command{
		Use:   "edit <deck> <term>",
		Short: "Replace the meanings or example of a word, keeping its stats",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			exampleSet := cmd.Flags().Changed("example")
			if len(meanings) == 0 && !exampleSet {
				return errors.New("nothing to change: pass --meaning or --example")
			}
			entry, err := a.store.GetWord(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if entry == nil {
				return fmt.Errorf("word %s: %w", args[1], review.ErrUnknownWord)
			}
			if len(meanings) > 0 {
				entry.Meanings = entry.Meanings[:0]
				for _, m := range meanings {
					if m = strings.TrimSpace(m); m != "" {
						entry.Meanings = append(entry.Meanings, m)
					}
				}
				if len(entry.Meanings) == 0 {
					return errors.New("meanings must not be blank")
				}
			}
			if exampleSet {
				entry.Example = strings.TrimSpace(example)
			}
			if err := a.store.UpdateWord(cmd.Context(), args[0], *entry); err != nil {
				return err
			}
			printWord(cmd.OutOrStdout(), entry)
			return nil
		},
	}
	edit.Flags().StringArrayVar(&meanings, "meaning", nil, "Meaning; repeat for several")
	edit.Flags().StringVar(&example, "example", "", "Example sentence")

	rm := &cobra.Command{
		Use:   "rm <deck> <term>",
		Short: "Delete a word and its review history",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.DeleteWord(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Word %s deleted from %s.\n", args[1], args[0])
			return nil
		},
	}

	word.AddCommand(list, show, edit, rm)
	return word
}

func score(st domain.DirectionStats) string {
	return fmt.Sprintf("%d/%d", st.CorrectCount, st.CorrectCount+st.IncorrectCount)
}

func printWord(out io.Writer, entry *domain.WordEntry) {
	fmt.Fprintf(out, "%s: %s\n", entry.Term, strings.Join(entry.Meanings, "; "))
	if entry.Example != "" {
		fmt.Fprintf(out, "  example: %s\n", entry.Example)
	}
	for _, d := range domain.Directions {
		st := entry.ReviewStats[d]
		next := "now"
		if st.NextReviewAt != nil {
			next = st.NextReviewAt.Format(time.DateTime)
		}
		fmt.Fprintf(out, "  %s: %d correct, %d incorrect, %s, next %s\n", d, st.CorrectCount, st.IncorrectCount, st.QuestionMode, next)
	}
}
