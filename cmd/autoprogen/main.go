// Command autoprogen grades a directory of C assignment submissions:
// it locates each student's source, compiles it, runs it against the
// configured test cases and scores the outputs against pattern lists.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v3"

	"github.com/yasu-a/autoprogen/api"
	"github.com/yasu-a/autoprogen/internal/environment"
	"github.com/yasu-a/autoprogen/internal/invoke"
	"github.com/yasu-a/autoprogen/internal/match"
	"github.com/yasu-a/autoprogen/internal/pattern"
	"github.com/yasu-a/autoprogen/internal/pipeline"
	"github.com/yasu-a/autoprogen/internal/resultstore"
	"github.com/yasu-a/autoprogen/internal/runner"
	"github.com/yasu-a/autoprogen/internal/submission"
	"github.com/yasu-a/autoprogen/internal/testcase"
)

func main() {
	cfg := environment.ReadEnvConfig()
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      cfg.LogLevel,
		TimeFormat: time.Kitchen,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "autoprogen",
		Usage: "grade C assignment submissions against configured test cases",
		Commands: []*cli.Command{
			gradeCommand(cfg),
			statusCommand(cfg),
			clearCommand(cfg),
			matchCommand(),
		},
	}
	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

type stores struct {
	results   *resultstore.Store
	testcases *testcase.Store
}

func openStores(cfg *environment.EnvConfig) (*stores, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	results, err := resultstore.Open(cfg.ResultDBPath())
	if err != nil {
		return nil, err
	}
	testcases, err := testcase.NewStore(cfg.TestcaseDir())
	if err != nil {
		_ = results.Close()
		return nil, err
	}
	return &stores{results: results, testcases: testcases}, nil
}

func (s *stores) close() {
	_ = s.results.Close()
}

func gradeCommand(cfg *environment.EnvConfig) *cli.Command {
	return &cli.Command{
		Name:  "grade",
		Usage: "run the grading pipeline over a submission directory",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "submissions", Aliases: []string{"s"}, Required: true,
				Usage: "directory holding one folder per student"},
			&cli.StringSliceFlag{Name: "student",
				Usage: "grade only the given student ids (repeatable)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			st, err := openStores(cfg)
			if err != nil {
				return err
			}
			defer st.close()

			submissions := submission.NewAccessor(cmd.String("submissions"))
			students := cmd.StringSlice("student")
			if len(students) == 0 {
				if students, err = submissions.Students(); err != nil {
					return err
				}
			}
			if len(students) == 0 {
				return fmt.Errorf("no submissions found in %s", cmd.String("submissions"))
			}

			slots, err := runner.NewSlots(cfg.DynamicDir())
			if err != nil {
				return err
			}
			compiler := invoke.NewCCompiler(cfg.CompileCommand,
				time.Duration(cfg.CompileTimeoutSec*float64(time.Second)))
			r := runner.New(st.results, st.testcases, submissions, compiler,
				&invoke.LocalExecutor{}, slots, cfg.ScratchDir())
			driver := pipeline.NewDriver(st.results, st.testcases, submissions, r)
			pool := pipeline.NewPool(driver, cfg.MaxWorkers)

			// An interrupt stops every student at the next stage boundary;
			// results written so far stay valid.
			go func() {
				<-ctx.Done()
				pool.Terminate()
			}()

			slog.Info("grading", "students", len(students), "workers", cfg.MaxWorkers)
			for _, id := range students {
				if !pool.Submit(id) {
					slog.Warn("student not queued", "student", id)
				}
			}
			pool.Wait()
			slog.Info("grading finished")
			return nil
		},
	}
}

func statusCommand(cfg *environment.EnvConfig) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "print stored grading results",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "student", Usage: "limit to the given student ids"},
			&cli.BoolFlag{Name: "json", Usage: "emit the full reports as JSON"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			st, err := openStores(cfg)
			if err != nil {
				return err
			}
			defer st.close()

			students := cmd.StringSlice("student")
			if len(students) == 0 {
				if students, err = st.results.Students(); err != nil {
					return err
				}
			}

			reports, err := api.NewBuilder(st.results, st.testcases).All(students)
			if err != nil {
				return err
			}

			if cmd.Bool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			}
			for _, rep := range reports {
				printReport(rep)
			}
			return nil
		},
	}
}

var statusColors = map[api.Status]*color.Color{
	api.StatusAccepted: color.New(color.FgGreen),
	api.StatusRejected: color.New(color.FgYellow),
	api.StatusFailed:   color.New(color.FgRed),
	api.StatusPending:  color.New(color.FgWhite),
}

func printReport(rep api.StudentReport) {
	fmt.Printf("%-12s %s", rep.StudentID, statusColors[rep.Status].Sprint(rep.Status))
	if rep.Status == api.StatusFailed {
		reason := ""
		switch {
		case rep.Build != nil && rep.Build.Status == api.StatusFailed:
			reason = rep.Build.Reason
		case rep.Compile != nil && rep.Compile.Status == api.StatusFailed:
			reason = rep.Compile.Reason
		}
		if reason != "" {
			fmt.Printf(" (%s)", reason)
		}
	}
	fmt.Println()
	for _, tc := range rep.Testcases {
		line := fmt.Sprintf("  %-10s %s", tc.TestcaseID, statusColors[tc.Status].Sprint(tc.Status))
		if tc.Reason != "" {
			line += " (" + tc.Reason + ")"
		}
		fmt.Println(line)
	}
}

func clearCommand(cfg *environment.EnvConfig) *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "remove stored results so the next grade run starts fresh",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "student", Usage: "clear only the given student ids"},
			&cli.BoolFlag{Name: "all", Usage: "clear every student"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			st, err := openStores(cfg)
			if err != nil {
				return err
			}
			defer st.close()

			students := cmd.StringSlice("student")
			if cmd.Bool("all") {
				if students, err = st.results.Students(); err != nil {
					return err
				}
			}
			if len(students) == 0 {
				return fmt.Errorf("pass --student or --all")
			}
			for _, id := range students {
				if err := st.results.Clear(id); err != nil {
					return err
				}
				slog.Info("cleared", "student", id)
			}
			return nil
		},
	}
}

func matchCommand() *cli.Command {
	return &cli.Command{
		Name:  "match",
		Usage: "run a pattern list against a text file, for authoring test configs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "patterns", Aliases: []string{"p"}, Required: true,
				Usage: "JSON file holding the pattern list"},
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Required: true,
				Usage: "text file to match against"},
			&cli.BoolFlag{Name: "ignore-case"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			rawList, err := os.ReadFile(cmd.String("patterns"))
			if err != nil {
				return err
			}
			var list pattern.List
			if err := json.Unmarshal(rawList, &list); err != nil {
				return fmt.Errorf("failed to parse pattern list: %w", err)
			}
			input, err := os.ReadFile(cmd.String("input"))
			if err != nil {
				return err
			}

			res, err := match.Match(string(input), list, match.Options{
				IgnoreCase: cmd.Bool("ignore-case"),
			})
			if err != nil {
				return err
			}

			verdict := statusColors[api.StatusRejected].Sprint("rejected")
			if res.Accepted() {
				verdict = statusColors[api.StatusAccepted].Sprint("accepted")
			}
			fmt.Printf("%s  (%s)\n", verdict, res.Elapsed)
			for _, s := range res.Matched {
				fmt.Printf("  matched     #%d %-8s %q at [%d:%d]\n",
					s.Pattern.Index, s.Pattern.Kind, s.Pattern.Text, s.Begin, s.End)
			}
			for _, p := range res.NonMatched {
				fmt.Printf("  non-matched #%d %-8s %q\n", p.Index, p.Kind, p.Text)
			}
			return nil
		},
	}
}
