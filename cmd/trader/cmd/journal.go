package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/trendbot/config"
	"github.com/rustyeddy/trendbot/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Read back the event log",
	Long: `Display rows of the bot's event log.

Subcommands:
  tail   - Show the most recent events
  today  - List today's events (SQLite log)
  day    - List the events of one day (SQLite log)

Examples:
  trader journal tail -n 20
  trader journal today
  trader journal day 2024-01-15`,
}

var journalTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show the most recent events",
	Args:  cobra.NoArgs,
	RunE:  runJournalTail,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List today's events",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List the events of a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalTailN int

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTailCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)

	journalTailCmd.Flags().IntVarP(&journalTailN, "lines", "n", 20, "number of events")
}

func runJournalTail(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Journal.Type == "csv" {
		header, rows, err := journal.TailCSV(cfg.Journal.Path, journalTailN)
		if err != nil {
			return fmt.Errorf("read %s: %w", cfg.Journal.Path, err)
		}
		return writeRows(cmd.OutOrStdout(), header, rows)
	}

	j, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	events, err := j.Tail(journalTailN)
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}
	return writeEvents(cmd.OutOrStdout(), events)
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	return listDay(cmd, time.Now().Format("2006-01-02"))
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	return listDay(cmd, args[0])
}

func listDay(cmd *cobra.Command, day string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Journal.Type == "csv" {
		return fmt.Errorf("day queries need the sqlite event log (journal.type sqlite or both)")
	}
	loc, err := cfg.Bot.Location()
	if err != nil {
		return err
	}

	start, end, err := dayBounds(loc, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	j, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	events, err := j.ListBetween(start, end)
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}
	return writeEvents(cmd.OutOrStdout(), events)
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1), nil
}

func writeEvents(w io.Writer, events []journal.Event) error {
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, e.Row())
	}
	return writeRows(w, journal.Columns, rows)
}

func writeRows(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if header != nil {
		if err := cw.Write(header); err != nil {
			return err
		}
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
