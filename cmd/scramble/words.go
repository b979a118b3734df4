package main

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/robalobadob/wordscramble/internal/config"
	"github.com/robalobadob/wordscramble/internal/game"
	"github.com/robalobadob/wordscramble/internal/words"
)

// NewWordsCmd creates the words command.
func NewWordsCmd() *cobra.Command {
	cfg := config.Load()
	var (
		file           string
		minLen, maxLen int
		list           bool
	)

	cmd := &cobra.Command{
		Use:   "words",
		Short: "Inspect the word list",
		Long: `Load the word list with the current filters and report how many words are
playable. Words whose inner letters cannot be rearranged are listed so they
can be removed from the file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := words.Load(file, words.Options{MinLen: minLen, MaxLen: maxLen})
			if err != nil {
				return fmt.Errorf("load word list: %w", err)
			}
			all := lo.Map(l.Words(), func(w string, _ int) string { return game.Sanitize(w) })
			playable := lo.Filter(all, func(w string, _ int) bool { return game.CanScramble(w) })
			stuck := lo.Filter(all, func(w string, _ int) bool { return !game.CanScramble(w) })

			read, kept := l.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "read %d, kept %d, playable %d\n", read, kept, len(playable))
			if len(stuck) > 0 {
				fmt.Fprintf(out, "cannot scramble: %s\n", strings.Join(stuck, ", "))
			}
			if list {
				for _, w := range playable {
					fmt.Fprintln(out, w)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "words", "w", cfg.WordsFile, "Word list file (default: built-in list)")
	cmd.Flags().IntVar(&minLen, "min-len", cfg.WordMinLen, "Shortest word to keep")
	cmd.Flags().IntVar(&maxLen, "max-len", cfg.WordMaxLen, "Longest word to keep")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "Print every playable word")

	return cmd
}
