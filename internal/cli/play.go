package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/config"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/identity"
	"trivia-quiz-service/internal/infra/memory"
	"trivia-quiz-service/internal/logger"
)

type playOptions struct {
	category   string
	difficulty string
	amount     int
	userID     string
	offline    bool
}

// NewPlayCmd runs a single quiz session in the terminal.
func NewPlayCmd(configPath *string) *cobra.Command {
	var opts playOptions
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a timed quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, *configPath, opts)
		},
	}
	cmd.Flags().StringVar(&opts.category, "category", "science", "question category ("+strings.Join(domain.Categories(), ", ")+")")
	cmd.Flags().StringVar(&opts.difficulty, "difficulty", "", "easy, medium or hard; empty for any")
	cmd.Flags().IntVar(&opts.amount, "amount", domain.DefaultAmount, "number of questions")
	cmd.Flags().StringVar(&opts.userID, "user", "", "user id to save the score under; anonymous when empty")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "use the built-in sample questions instead of the trivia API")
	return cmd
}

func runPlay(cmd *cobra.Command, configPath string, opts playOptions) error {
	quiz := domain.QuizConfig{Amount: opts.amount, Category: opts.category, Difficulty: opts.difficulty}
	if err := quiz.Validate(); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg)
	if err != nil {
		return err
	}
	// Keep the terminal readable: only warnings and above.
	log = log.WithOptions(zap.IncreaseLevel(zap.WarnLevel))
	defer func() { _ = log.Sync() }()

	var engine *app.Engine
	if opts.offline {
		cache := memory.NewQuestionCache(memory.NewStaticQuestionLoader(sampleQuestions()), 0, log)
		engine = app.NewEngine(cache, memory.NewScoreStore(), memory.NewSessionStore(), app.Options{Logger: log})
	} else {
		d, cleanup, err := buildDeps(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer cleanup()
		engine = d.engine
	}

	var who app.IdentityProvider = identity.NewAnonymous()
	if opts.userID != "" {
		who = identity.NewFixed(opts.userID)
	}
	user, err := who.CurrentUser(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Playing as guest %s. Type an option number to answer, Enter for next, q to quit.\n", user.ShortID())

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	session, err := engine.Start(ctx, who, quiz)
	if err != nil {
		return err
	}
	defer session.Close()

	err = playSession(ctx, session, readLines(ctx, cmd.InOrStdin()), out)
	// Let a score write for a session that finished just before quitting complete.
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if shutdownErr := engine.Shutdown(waitCtx); shutdownErr != nil {
		log.Warn("score write still pending on exit", zap.Error(shutdownErr))
	}
	return err
}

func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// playSession renders session updates to out and applies commands read from
// lines until the player quits, input ends, or the session closes.
func playSession(ctx context.Context, session *app.Session, lines <-chan string, out io.Writer) error {
	updates, cancel := session.Subscribe()
	defer cancel()

	view := &terminalView{out: out}
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			view.render(snap)
		case line, ok := <-lines:
			if !ok || line == "q" {
				return nil
			}
			if err := applyCommand(session, session.Snapshot(), line); err != nil {
				fmt.Fprintf(out, "! %v\n", err)
			}
		}
	}
}

func applyCommand(session *app.Session, snap domain.SessionSnapshot, line string) error {
	switch snap.Phase {
	case domain.PhaseLoading:
		if line == "r" {
			return session.Retry()
		}
	case domain.PhaseFinished:
		if line == "r" {
			return session.Configure(snap.Config.Raw())
		}
	case domain.PhaseInProgress:
		if line == "" || line == "n" {
			_, err := session.Next(snap.CurrentIndex)
			return err
		}
		n, err := strconv.Atoi(line)
		if err != nil || snap.Question == nil || n < 1 || n > len(snap.Question.Options) {
			return fmt.Errorf("pick a number between 1 and %d", optionCount(snap))
		}
		_, err = session.Select(snap.CurrentIndex, snap.Question.Options[n-1])
		return err
	}
	return nil
}

func optionCount(snap domain.SessionSnapshot) int {
	if snap.Question == nil {
		return 0
	}
	return len(snap.Question.Options)
}

// terminalView prints only what changed between snapshots.
type terminalView struct {
	out       io.Writer
	phase     domain.Phase
	status    domain.LoadStatus
	index     int
	answered  bool
	lastAlert int
}

func (v *terminalView) render(snap domain.SessionSnapshot) {
	newPhase := snap.Phase != v.phase || snap.LoadStatus != v.status
	v.phase, v.status = snap.Phase, snap.LoadStatus

	switch snap.Phase {
	case domain.PhaseLoading:
		if !newPhase {
			return
		}
		switch snap.LoadStatus {
		case domain.LoadStatusLoading:
			fmt.Fprintf(v.out, "Loading %d %s questions...\n", snap.Config.Amount, domain.CategoryTitle(snap.Config.Category))
		case domain.LoadStatusNoQuestions:
			fmt.Fprintln(v.out, "No questions available for this selection. Type r to retry or q to quit.")
		default:
			fmt.Fprintf(v.out, "Could not load questions (%s). Type r to retry or q to quit.\n", snap.LoadError)
		}
	case domain.PhaseInProgress:
		if newPhase || snap.CurrentIndex != v.index {
			v.index, v.answered, v.lastAlert = snap.CurrentIndex, false, 0
			fmt.Fprintf(v.out, "\nQuestion %d/%d  [%s]  %ds\n%s\n", snap.CurrentIndex+1, snap.Total,
				domain.CategoryTitle(snap.Config.Category), snap.SecondsRemaining, snap.Question.Prompt)
			for i, opt := range snap.Question.Options {
				fmt.Fprintf(v.out, "  %d) %s\n", i+1, opt)
			}
		}
		if snap.Feedback != nil && !v.answered {
			v.answered = true
			if snap.Feedback.Correct {
				fmt.Fprintln(v.out, "Correct!")
			} else {
				fmt.Fprintf(v.out, "Wrong, the answer was %s.\n", snap.Feedback.CorrectAnswer)
			}
			label := "Next Question"
			if snap.IsLast {
				label = "Finish Quiz"
			}
			fmt.Fprintf(v.out, "Press Enter for %s.\n", label)
		}
		if !v.answered && snap.SecondsRemaining <= 5 && snap.SecondsRemaining > 0 && snap.SecondsRemaining != v.lastAlert {
			v.lastAlert = snap.SecondsRemaining
			fmt.Fprintf(v.out, "%ds left\n", snap.SecondsRemaining)
		}
	case domain.PhaseFinished:
		if !newPhase || snap.Result == nil {
			return
		}
		r := snap.Result
		fmt.Fprintf(v.out, "\nQuiz finished: %d/%d (%d%%) at %s. Type r to play again or q to quit.\n",
			r.Score, r.Total, r.Percentage, r.FinishedAt.Format(time.Kitchen))
	}
}

// sampleQuestions backs --offline play.
func sampleQuestions() map[string][]domain.Question {
	return map[string][]domain.Question{
		"science": {
			{Prompt: "What is the chemical symbol for gold?", Options: []string{"Ag", "Au", "Gd", "Go"}, CorrectAnswer: "Au"},
			{Prompt: "Which planet is known as the Red Planet?", Options: []string{"Venus", "Jupiter", "Mars", "Mercury"}, CorrectAnswer: "Mars"},
			{Prompt: "What gas do plants absorb from the air?", Options: []string{"Oxygen", "Carbon dioxide", "Nitrogen", "Helium"}, CorrectAnswer: "Carbon dioxide"},
		},
		"geography": {
			{Prompt: "What is the capital of Canada?", Options: []string{"Toronto", "Ottawa", "Montreal", "Vancouver"}, CorrectAnswer: "Ottawa"},
			{Prompt: "Which is the longest river in Africa?", Options: []string{"Congo", "Niger", "Nile", "Zambezi"}, CorrectAnswer: "Nile"},
		},
		"music": {
			{Prompt: "How many lines does a musical staff have?", Options: []string{"4", "5", "6", "7"}, CorrectAnswer: "5"},
		},
	}
}
