package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conorfennell/vocadeck/internal/config"
	"github.com/conorfennell/vocadeck/internal/domain"
	"github.com/conorfennell/vocadeck/internal/interval"
	"github.com/conorfennell/vocadeck/internal/parser"
	"github.com/conorfennell/vocadeck/internal/review"
	"github.com/conorfennell/vocadeck/internal/storage"
	"github.com/conorfennell/vocadeck/internal/storage/jsonstore"
	"github.com/conorfennell/vocadeck/internal/studylog"
	"github.com/conorfennell/vocadeck/internal/sync"
	"github.com/conorfennell/vocadeck/internal/web"
)

// app carries what every subcommand needs once flags and config are loaded.
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	store storage.Store
}

func setupLogger(env string) *zap.Logger {
	var logger *zap.Logger
	if env == "development" {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func openStore(cfg config.StorageConfig) (storage.Store, error) {
	if cfg.Driver == "json" {
		s, err := jsonstore.Open(cfg.JSONPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	db, err := storage.Open(cfg.DSN)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func (a *app) service() (*review.Service, error) {
	policy, err := interval.ByName(a.cfg.Review.Policy)
	if err != nil {
		return nil, err
	}
	return review.NewService(a.store, review.Options{
		Policy: policy,
		Mastery: review.MasteryRule{
			MinReviews: a.cfg.Review.MasteryMinReviews,
			Accuracy:   a.cfg.Review.MasteryAccuracy,
		},
		MaxDistractors:    a.cfg.Review.MaxDistractors,
		NearMissThreshold: a.cfg.Review.NearMissThreshold,
	}, a.log), nil
}

func (a *app) syncer() *sync.Syncer {
	return sync.NewSyncer(a.store, a.log, a.cfg.Sync.ReposDir, a.cfg.Review.RegistrationDelay)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var configPath string

	root := &cobra.Command{
		Use:           "vocadeck",
		Short:         "Spaced-repetition vocabulary review",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			a.cfg = cfg
			a.log = setupLogger(cfg.Env)

			store, err := openStore(cfg.Storage)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			a.store = store
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			_ = a.log.Sync()
			return a.store.Close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flags.String("env", "development", "Environment: development or production")
	flags.String("driver", "sqlite", "Word store: sqlite or json")
	flags.String("db", "vocadeck.db", "Path to the SQLite database file")
	flags.String("json", "vocadeck.json", "Path to the JSON word file")
	flags.String("policy", "exponential", "Interval policy: exponential or logarithmic")
	flags.String("repos", "repos", "Directory git sources are checked out into")

	root.AddCommand(
		newServeCmd(a),
		newReviewCmd(a),
		newDueCmd(a),
		newAddCmd(a),
		newDeckCmd(a),
		newWordCmd(a),
		newSourceCmd(a),
		newSyncCmd(a),
		newStatsCmd(a),
	)
	return root
}

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the review JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			srv := &http.Server{
				Addr:              a.cfg.HTTP.Addr,
				Handler:           web.NewServer(a.store, svc, a.syncer(), a.log,
					web.WithSessionTTL(a.cfg.HTTP.SessionTTL)).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				a.log.Info("starting server", zap.String("addr", srv.Addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("failed to start server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			a.log.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().String("addr", ":8080", "Address to listen on")
	return cmd
}

func newReviewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "review <deck> <direction>",
		Short: "Review due words in the terminal",
		Long:  "Review due words in the terminal. direction is study_to_native or native_to_study.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := domain.ParseDirection(args[1])
			if err != nil {
				return err
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			sess, err := svc.StartSession(cmd.Context(), args[0], d, time.Now())
			if errors.Is(err, review.ErrNoWordsDue) {
				fmt.Fprintln(cmd.OutOrStdout(), "No words are due. Come back later.")
				return nil
			}
			if err != nil {
				return err
			}
			return newTerminal(cmd.InOrStdin(), cmd.OutOrStdout(), time.Now).Run(cmd.Context(), sess)
		},
	}
}

func newDueCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "due <deck> <direction>",
		Short: "List the words due now",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := domain.ParseDirection(args[1])
			if err != nil {
				return err
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			words, err := svc.SelectDueWords(cmd.Context(), args[0], d, time.Now())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TERM\tMEANINGS\tCORRECT\tINCORRECT\tDUE")
			for _, word := range words {
				st := word.ReviewStats[d]
				due := "now"
				if st.NextReviewAt != nil {
					due = st.NextReviewAt.Format(time.DateTime)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", word.Term, strings.Join(word.Meanings, "; "), st.CorrectCount, st.IncorrectCount, due)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d word(s) due.\n", len(words))
			return nil
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	var example string
	cmd := &cobra.Command{
		Use:   "add <deck> <term> <meaning>...",
		Short: "Register a word, merging meanings into an existing one",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := parser.Entry{Term: args[1], Example: example}
			for _, m := range args[2:] {
				entry.Meanings = append(entry.Meanings, strings.TrimSpace(m))
			}
			outcome, err := sync.Register(cmd.Context(), a.store, args[0], entry, time.Now(), a.cfg.Review.RegistrationDelay)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", entry.Term, outcome)
			return nil
		},
	}
	cmd.Flags().StringVar(&example, "example", "", "Example sentence")
	return cmd
}

func newDeckCmd(a *app) *cobra.Command {
	deck := &cobra.Command{
		Use:   "deck",
		Short: "Manage decks",
	}

	var settings domain.DeckSettings
	create := &cobra.Command{
		Use:   "create <deck>",
		Short: "Create a deck, or change its languages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.CreateDeck(cmd.Context(), args[0], settings); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deck %s ready (%s → %s).\n", args[0], settings.StudyLanguage, settings.NativeLanguage)
			return nil
		},
	}
	create.Flags().StringVar(&settings.NativeLanguage, "native", "ko", "Native language tag")
	create.Flags().StringVar(&settings.StudyLanguage, "study", "en", "Study language tag")

	list := &cobra.Command{
		Use:   "list",
		Short: "List decks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := a.store.ListDecks(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	rm := &cobra.Command{
		Use:   "rm <deck>",
		Short: "Delete a deck with its words, study log and sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.DeleteDeck(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deck %s deleted.\n", args[0])
			return nil
		},
	}

	deck.AddCommand(create, list, rm)
	return deck
}

func newSourceCmd(a *app) *cobra.Command {
	source := &cobra.Command{
		Use:   "source",
		Short: "Manage word-list sources",
	}

	add := &cobra.Command{
		Use:   "add <deck> <path-or-git-url>",
		Short: "Attach a local directory or git repository to a deck",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ := domain.DetectSourceType(args[1])
			id, err := a.store.InsertSource(cmd.Context(), args[0], args[1], typ)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s source %d: %s\n", typ, id, args[1])
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sources, err := a.store.ListSources(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDECK\tTYPE\tPATH\tLAST SCANNED")
			for _, s := range sources {
				scanned := "never"
				if s.LastScanned != nil {
					scanned = s.LastScanned.Format(time.DateTime)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", s.ID, s.Deck, s.Type, s.Path, scanned)
			}
			return w.Flush()
		},
	}

	source.AddCommand(add, list)
	return source
}

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Register the words of every source into its deck",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reports, err := a.syncer().RunSync(cmd.Context())
			if err != nil {
				return err
			}
			if len(reports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sources configured. Add one with: vocadeck source add <deck> <path-or-git-url>")
				return nil
			}
			for _, r := range reports {
				fmt.Fprintf(cmd.OutOrStdout(), "%s → %s: %d added, %d merged, %d duplicate, %d error(s)\n",
					r.Path, r.Deck, r.Added, r.Merged, r.Duplicates, len(r.Errors))
				for _, e := range r.Errors {
					fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", e)
				}
			}
			return nil
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <deck>",
		Short: "Show study time and accuracy per day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := a.store.GetStudyLog(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			report := studylog.Summarize(log)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tWORDS\tCORRECT\tINCORRECT\tMINUTES")
			for _, day := range report.Days {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", day.Date, day.StudiedWordCount, day.CorrectCount, day.IncorrectCount, day.StudyMinutes)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Total: %d min, %d correct, %d incorrect, %.0f%% accuracy\n",
				report.TotalMinutes, report.TotalCorrect, report.TotalIncorrect, report.Accuracy*100)
			return nil
		},
	}
}
