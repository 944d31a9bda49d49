// cmd/repodeck/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"repodeck/client"
	"repodeck/internal/config"
	"repodeck/internal/diff"
	"repodeck/internal/git"
	"repodeck/internal/history"
	"repodeck/internal/logging"
	"repodeck/internal/server"
	"repodeck/internal/squash"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	serverURL  string
	repoPath   string

	cfg    *config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "repodeck",
	Short: "Fold working-tree hunks into earlier commits",
	Long: `repodeck inspects a git working tree, lets you pick individual hunks of a
file and squashes them into an existing commit with a fixup commit and an
autosquash rebase.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(config.Path(configPath))
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger, err = logging.NewLogger(cfg.LogLevel, cfg.Environment)
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		if repoPath == "" {
			if repoPath, err = os.Getwd(); err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}
		}
		return nil
	},
}

// ops is what the commands need, served locally or through the API
type ops interface {
	Status(ctx context.Context, repoPath string) ([]git.FileStatus, error)
	Log(ctx context.Context, repoPath string, maxCount int) ([]git.Commit, error)
	Diff(ctx context.Context, repoPath, filePath string) ([]diff.Hunk, string, error)
	Squash(ctx context.Context, req squash.Request) (*squash.Result, error)
	History(ctx context.Context, repoPath string) ([]*history.Record, error)
	Close() error
}

type localOps struct {
	core *server.Core
}

func (l *localOps) Status(ctx context.Context, repo string) ([]git.FileStatus, error) {
	return l.core.Backend.Status(ctx, repo)
}

func (l *localOps) Log(ctx context.Context, repo string, n int) ([]git.Commit, error) {
	return l.core.Backend.Log(ctx, repo, n)
}

func (l *localOps) Diff(ctx context.Context, repo, file string) ([]diff.Hunk, string, error) {
	text, err := l.core.Backend.Diff(ctx, repo, file, false)
	if err != nil {
		return nil, "", err
	}
	return diff.Parse(text), text, nil
}

func (l *localOps) Squash(ctx context.Context, req squash.Request) (*squash.Result, error) {
	return l.core.Squasher.Squash(ctx, req)
}

func (l *localOps) History(ctx context.Context, repo string) ([]*history.Record, error) {
	return l.core.History.List(repo)
}

func (l *localOps) Close() error { return l.core.Close() }

type remoteOps struct {
	c *client.Client
}

func (r *remoteOps) Status(ctx context.Context, repo string) ([]git.FileStatus, error) {
	return r.c.Status(ctx, repo)
}

func (r *remoteOps) Log(ctx context.Context, repo string, n int) ([]git.Commit, error) {
	return r.c.Log(ctx, repo, n)
}

func (r *remoteOps) Diff(ctx context.Context, repo, file string) ([]diff.Hunk, string, error) {
	resp, err := r.c.Diff(ctx, repo, file, false)
	if err != nil {
		return nil, "", err
	}
	return resp.Hunks, resp.Diff, nil
}

func (r *remoteOps) Squash(ctx context.Context, req squash.Request) (*squash.Result, error) {
	return r.c.Squash(ctx, req)
}

func (r *remoteOps) History(ctx context.Context, repo string) ([]*history.Record, error) {
	return r.c.History(ctx, repo)
}

func (r *remoteOps) Close() error { return nil }

func openOps() (ops, error) {
	if serverURL != "" {
		return &remoteOps{c: client.New(serverURL)}, nil
	}
	core, err := server.NewCore(cfg, logger.Logger)
	if err != nil {
		return nil, err
	}
	return &localOps{core: core}, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a JSON or YAML config file")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "use a running repodeck server at this URL")
	rootCmd.PersistentFlags().StringVarP(&repoPath, "repo", "C", "", "repository path (default: current directory)")

	var serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer logger.Sync()

			srv, err := server.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("initializing server: %w", err)
			}
			defer srv.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}

	var statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show changed files",
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := openOps()
			if err != nil {
				return err
			}
			defer o.Close()

			files, err := o.Status(cmd.Context(), repoPath)
			if err != nil {
				return fmt.Errorf("reading status: %w", err)
			}
			printStatus(files)
			return nil
		},
	}

	var logCmd = &cobra.Command{
		Use:   "log",
		Short: "Show recent commits",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, _ := cmd.Flags().GetInt("max-count")
			if n <= 0 {
				n = cfg.Git.LogLimit
			}

			o, err := openOps()
			if err != nil {
				return err
			}
			defer o.Close()

			commits, err := o.Log(cmd.Context(), repoPath, n)
			if err != nil {
				return fmt.Errorf("reading log: %w", err)
			}
			printLog(commits)
			return nil
		},
	}
	logCmd.Flags().IntP("max-count", "n", 0, "number of commits to show")

	var diffCmd = &cobra.Command{
		Use:   "diff <file>",
		Short: "Show the numbered hunks of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := openOps()
			if err != nil {
				return err
			}
			defer o.Close()

			hunks, _, err := o.Diff(cmd.Context(), repoPath, args[0])
			if err != nil {
				return fmt.Errorf("reading diff: %w", err)
			}
			if len(hunks) == 0 {
				fmt.Println("No changes in", args[0])
				return nil
			}
			printHunks(hunks)
			return nil
		},
	}

	var squashCmd = &cobra.Command{
		Use:   "squash <file>",
		Short: "Squash hunks of a file into an earlier commit",
		Long: `Stages the chosen hunks of <file> (or the whole file when no --hunk is
given), creates a fixup commit for --into and runs an autosquash rebase.`,
		Example: `  repodeck squash main.go --into abc1234 --hunk 0 --hunk 2
  repodeck squash README.md --into HEAD~3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, _ := cmd.Flags().GetString("into")
			indices, _ := cmd.Flags().GetIntSlice("hunk")
			if target == "" {
				return fmt.Errorf("--into is required")
			}

			o, err := openOps()
			if err != nil {
				return err
			}
			defer o.Close()

			ctx := cmd.Context()
			sel, err := squash.NewSelection(repoPath).SelectFile(args[0])
			if err != nil {
				return err
			}
			hunks, _, err := o.Diff(ctx, repoPath, args[0])
			if err != nil {
				return fmt.Errorf("reading diff: %w", err)
			}
			if sel, err = sel.DiffLoaded(args[0], hunks); err != nil {
				return err
			}
			if len(indices) == 0 {
				sel, err = sel.ChooseWholeFile()
			}
			for _, i := range uniqueIndices(indices) {
				if err != nil {
					break
				}
				sel, err = sel.ToggleHunk(i)
			}
			if err != nil {
				return err
			}
			if sel, err = sel.ProceedToCommit(); err != nil {
				return err
			}
			if sel, err = sel.SelectCommit(target); err != nil {
				return err
			}
			req, err := sel.Request()
			if err != nil {
				return err
			}

			res, err := o.Squash(ctx, req)
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Println(res.Message)
			return nil
		},
	}
	squashCmd.Flags().String("into", "", "target commit")
	squashCmd.Flags().IntSlice("hunk", nil, "hunk index to include (repeatable, see `repodeck diff`)")

	var historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show past squash attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := openOps()
			if err != nil {
				return err
			}
			defer o.Close()

			records, err := o.History(cmd.Context(), repoPath)
			if err != nil {
				return fmt.Errorf("reading history: %w", err)
			}
			printHistory(records)
			return nil
		},
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(squashCmd)
	rootCmd.AddCommand(historyCmd)
}

// uniqueIndices drops repeated --hunk values, keeping first-seen order.
// ToggleHunk would otherwise deselect a hunk named twice.
func uniqueIndices(indices []int) []int {
	seen := make(map[int]bool, len(indices))
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	return out
}

func printStatus(files []git.FileStatus) {
	if len(files) == 0 {
		fmt.Println("No changes detected (working tree clean)")
		return
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	blue := color.New(color.FgBlue).SprintFunc()

	for _, f := range files {
		switch f.Status {
		case git.StatusCreated:
			fmt.Printf("\t%s %s\n", green("A"), f.Path)
		case git.StatusDeleted:
			fmt.Printf("\t%s %s\n", red("D"), f.Path)
		case git.StatusRenamed:
			fmt.Printf("\t%s %s -> %s\n", blue("R"), f.From, f.Path)
		default:
			fmt.Printf("\t%s %s\n", yellow("M"), f.Path)
		}
	}
}

func printLog(commits []git.Commit) {
	hash := color.New(color.FgYellow).SprintFunc()
	refs := color.New(color.FgCyan).SprintFunc()

	for _, c := range commits {
		line := hash(c.ShortHash) + " " + c.Message
		if c.Refs != "" {
			line += " " + refs("("+c.Refs+")")
		}
		fmt.Println(line)
	}
}

func printHunks(hunks []diff.Hunk) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	header := color.New(color.FgCyan)
	index := color.New(color.FgMagenta, color.Bold)

	for i, h := range hunks {
		index.Printf("[%d] ", i)
		header.Println(h.Header)
		for _, line := range h.Lines[1:] {
			switch {
			case strings.HasPrefix(line, "+"):
				added.Println(line)
			case strings.HasPrefix(line, "-"):
				removed.Println(line)
			default:
				fmt.Println(line)
			}
		}
	}
}

func printHistory(records []*history.Record) {
	if len(records) == 0 {
		fmt.Println("No squash history")
		return
	}

	ok := color.New(color.FgGreen).SprintFunc()
	failed := color.New(color.FgRed).SprintFunc()

	for _, r := range records {
		what := "whole file"
		if !r.WholeFile {
			what = fmt.Sprintf("%d/%d hunks", r.HunksStaged, r.HunkCount)
		}
		status := ok("ok")
		if !r.Succeeded() {
			status = failed(r.Error)
		}
		fmt.Printf("%s  %s  %s -> %s  (%s)  %s\n",
			r.CreatedAt.Local().Format(time.DateTime),
			r.FilePath,
			what,
			git.ShortHash(r.TargetCommit),
			r.RepoPath,
			status,
		)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Debug("command failed", zap.Error(err))
		}
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}
