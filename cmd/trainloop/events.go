package main

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/trainloop/capture/pkg/capture"
	"github.com/trainloop/capture/pkg/capture/store"
	"github.com/trainloop/capture/pkg/cli"
)

var eventsFlags struct {
	tag string
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect event files",
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List event files, oldest first",
	RunE:  listEvents,
}

var eventsShowCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Print the records of one event file",
	Long: `Print the captured calls stored in one event file. The file is named by
its base name (1718000000000.jsonl) or its epoch milliseconds.

Examples:
  trainloop events show 1718000000000.jsonl
  trainloop events show 1718000000000 --tag summarize -o json`,
	Args: cobra.ExactArgs(1),
	RunE: showEvents,
}

func init() {
	eventsShowCmd.Flags().StringVar(&eventsFlags.tag, "tag", "", "only show records with this tag")
	eventsCmd.AddCommand(eventsListCmd, eventsShowCmd)
	rootCmd.AddCommand(eventsCmd)
}

// eventFileSummary is one row of events list.
type eventFileSummary struct {
	Name        string `json:"name"`
	TimestampMs int64  `json:"timestampMs"`
	Records     int    `json:"records"`
	Skipped     int    `json:"skipped"`
}

func listEvents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return cli.NewCommandError("events list", err)
	}
	defer st.Close()

	files, err := st.ListEventFiles(cmd.Context())
	if err != nil {
		return cli.NewCommandError("events list", err)
	}

	summaries := make([]eventFileSummary, 0, len(files))
	table := &cli.Table{Columns: []string{"FILE", "WRITTEN", "RECORDS"}}
	for _, f := range files {
		records, bad, err := st.ReadEvents(cmd.Context(), f.Key)
		if err != nil {
			return cli.NewCommandError("events list", err)
		}
		s := eventFileSummary{
			Name:        path.Base(f.Key),
			TimestampMs: f.TimestampMs,
			Records:     len(records),
			Skipped:     bad,
		}
		summaries = append(summaries, s)
		table.Data = append(table.Data, []string{s.Name, store.FormatTimestamp(s.TimestampMs), strconv.Itoa(s.Records)})
	}
	return render(cmd.OutOrStdout(), summaries, table)
}

func showEvents(cmd *cobra.Command, args []string) error {
	name := args[0]
	if !strings.HasSuffix(name, ".jsonl") {
		name += ".jsonl"
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid event file name %q", args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return cli.NewCommandError("events show", err)
	}
	defer st.Close()

	records, bad, err := st.ReadEvents(cmd.Context(), store.EventsPrefix+name)
	if errors.Is(err, capture.ErrNotExist) {
		return fmt.Errorf("event file %s not found", name)
	}
	if err != nil {
		return cli.NewCommandError("events show", err)
	}
	if bad > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %d malformed lines\n", bad)
	}

	if eventsFlags.tag != "" {
		filtered := records[:0:0]
		for _, rec := range records {
			if rec.Tag == eventsFlags.tag {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	if records == nil {
		records = []capture.CallRecord{}
	}
	return render(cmd.OutOrStdout(), records, recordsTable(records))
}

func recordsTable(records []capture.CallRecord) *cli.Table {
	t := &cli.Table{Columns: []string{"START", "TAG", "MODEL", "DURATION", "LOCATION", "OUTPUT"}}
	for _, rec := range records {
		model := "-"
		if rec.Model != nil {
			model = *rec.Model
		}
		output := "-"
		if rec.Output != nil {
			output = truncate(rec.Output.Content, 40)
		}
		t.Data = append(t.Data, []string{
			time.UnixMilli(rec.StartTimeMs).UTC().Format(time.RFC3339),
			rec.Tag,
			model,
			(time.Duration(rec.DurationMs) * time.Millisecond).String(),
			rec.Location.File + ":" + rec.Location.LineNumber,
			output,
		})
	}
	return t
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
