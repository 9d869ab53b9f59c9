package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/ytpipe-go/internal/app"
	"github.com/yourusername/ytpipe-go/internal/domain"
	"github.com/yourusername/ytpipe-go/internal/infrastructure"
	"github.com/yourusername/ytpipe-go/pkg/logger"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Check that yt-dlp and ffmpeg can be run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(config, true)
		if err != nil {
			return err
		}

		locator := infrastructure.NewToolLocator(&config.Tools)
		runner := infrastructure.NewProcessRunner(locator, &config.Process, log)
		statuses := infrastructure.NewToolChecker(locator, runner, log).Check(cmd.Context())

		missing := 0
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TOOL\tSTATUS\tPATH\tVERSION")
		for _, s := range statuses {
			status := successStyle.Render("ok")
			detail := s.Version
			if !s.Available {
				missing++
				status = errorStyle.Render("missing")
				detail = s.Error
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Tool, status, s.Path, truncate(detail, 60))
		}
		w.Flush()

		if missing > 0 {
			return fmt.Errorf("%d tool(s) unavailable; install them into %s", missing, config.Tools.BinDir)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past download sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openHistory()
		if err != nil {
			return err
		}
		defer repo.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		state, _ := cmd.Flags().GetString("state")

		var records []*domain.SessionRecord
		if state != "" {
			records, err = repo.FindByState(domain.SessionState(state))
		} else {
			records, err = repo.FindRecent(limit)
		}
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATE\tSTRATEGY\tDURATION\tURL\tCREATED")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				truncate(r.ID, 8),
				r.State,
				r.Strategy,
				domain.FormatElapsed(time.Duration(r.DurationMs)*time.Millisecond),
				truncate(r.URL, 50),
				r.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show session statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openHistory()
		if err != nil {
			return err
		}
		defer repo.Close()

		stats, err := repo.GetStats()
		if err != nil {
			return err
		}
		fmt.Println("Session Statistics:")
		fmt.Printf("  Total:     %d\n", stats.Total)
		fmt.Printf("  Running:   %d\n", stats.Running)
		fmt.Printf("  Succeeded: %d\n", stats.Succeeded)
		fmt.Printf("  Failed:    %d\n", stats.Failed)
		fmt.Printf("  Cancelled: %d\n", stats.Cancelled)
		return nil
	},
}

func openHistory() (*infrastructure.SQLiteSessionRepository, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !config.History.Enabled {
		return nil, fmt.Errorf("session history is disabled (history.enabled)")
	}
	return infrastructure.NewSQLiteSessionRepository(config.History.DatabasePath)
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List downloaded videos, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		library, err := openLibrary()
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		files, err := library.ListRecent(limit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSIZE\tMODIFIED")
		for _, f := range files {
			fmt.Fprintf(w, "%s\t%s\t%s\n", f.Name, humanBytes(f.Size), f.ModTime.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var filesRmCmd = &cobra.Command{
	Use:   "rm [name]",
	Short: "Delete a downloaded video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		library, err := openLibrary()
		if err != nil {
			return err
		}
		if err := library.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

func openLibrary() (*infrastructure.Library, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return infrastructure.NewLibrary(config.Download.Dir, zap.NewNop()), nil
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the raw tool output log",
	Long: `Show the raw tool output log of a day. --sessions groups it by download
session; --follow streams lines appended to today's log.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		reader := logger.NewLogReader(config.Logging.LogsDir)

		follow, _ := cmd.Flags().GetBool("follow")
		if follow {
			return followLogs(cmd.Context(), reader)
		}

		date := time.Now()
		if s, _ := cmd.Flags().GetString("date"); s != "" {
			date, err = time.ParseInLocation("2006-01-02", s, time.Local)
			if err != nil {
				return fmt.Errorf("invalid date %q, use YYYY-MM-DD", s)
			}
		}
		limit, _ := cmd.Flags().GetInt("limit")
		query, _ := cmd.Flags().GetString("search")
		sessions, _ := cmd.Flags().GetBool("sessions")

		if sessions {
			list, err := reader.Sessions(date)
			if err != nil {
				return err
			}
			for _, s := range list {
				status := s.Status
				if status == "" {
					status = "RUNNING"
				}
				fmt.Printf("%s  %-9s %s  %s\n", s.StartedAt, status, truncate(s.ID, 8), s.Message)
			}
			return nil
		}

		var lines []string
		if query != "" {
			lines, err = reader.Search(date, query, limit)
		} else {
			lines, err = reader.ReadLines(date, limit)
		}
		if err != nil {
			return err
		}
		fmt.Println(strings.Join(lines, "\n"))
		return nil
	},
}

func followLogs(ctx context.Context, reader *logger.LogReader) error {
	if ctx == nil {
		ctx = context.Background()
	}
	lines := make(chan string, 64)
	errc := make(chan error, 1)
	go func() {
		errc <- reader.Follow(ctx, lines)
		close(lines)
	}()
	for line := range lines {
		fmt.Println(line)
	}
	return <-errc
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Println(strings.Join(app.ConfigSettings(config), "\n"))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with the default settings",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := os.ExpandEnv("$HOME/.ytpipe/config.yaml")
		if len(args) == 1 {
			path = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := app.SaveConfig(domain.DefaultConfig(), path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func humanBytes(n int64) string {
	return datasize.ByteSize(n).HumanReadable()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of sessions to show")
	historyCmd.Flags().StringP("state", "s", "", "Filter by state (running, succeeded, failed, cancelled)")
	historyCmd.AddCommand(historyStatsCmd)

	filesCmd.Flags().IntP("limit", "n", 20, "Number of files to show (0 for all)")
	filesCmd.AddCommand(filesRmCmd)

	logsCmd.Flags().String("date", "", "Day to show (YYYY-MM-DD, default today)")
	logsCmd.Flags().IntP("limit", "n", 200, "Number of lines to show (0 for all)")
	logsCmd.Flags().StringP("search", "q", "", "Only show lines containing this text")
	logsCmd.Flags().Bool("sessions", false, "Summarize sessions instead of printing lines")
	logsCmd.Flags().BoolP("follow", "f", false, "Stream new lines of today's log")

	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
	configCmd.AddCommand(configShowCmd, configInitCmd)

	rootCmd.AddCommand(toolsCmd, historyCmd, filesCmd, logsCmd, configCmd)
}
