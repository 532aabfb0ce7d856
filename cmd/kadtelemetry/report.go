package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/thomasdelaet/kad-telemetry/config"
	"github.com/thomasdelaet/kad-telemetry/metric"
	"github.com/thomasdelaet/kad-telemetry/persistence"
)

var (
	reportLocator string
	reportMetrics []string
	reportContact string
	reportSince   time.Duration
	reportJSON    bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize persisted telemetry",
	Long: `Summarize the samples persisted by a node, per metric and contact.

Contacts are ranked by score, best first. The persistence locator is
taken from --locator, or from the telemetry filename of the config file.

Example:
  kadtelemetry report --locator leveldb:data/telemetry --metric latency --since 1h`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportLocator, "locator", "", "persistence locator (defaults to the configured filename)")
	reportCmd.Flags().StringSliceVar(&reportMetrics, "metric", []string{metric.LatencyName, metric.AvailabilityName}, "metrics to report")
	reportCmd.Flags().StringVar(&reportContact, "contact", "", "restrict the report to one contact")
	reportCmd.Flags().DurationVar(&reportSince, "since", 0, "only include samples newer than this")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "output JSON")
}

// reportRow is one ranked contact of a metric.
type reportRow struct {
	Metric  string    `json:"metric"`
	Contact string    `json:"contact"`
	Score   float64   `json:"score"`
	Count   int       `json:"count"`
	Mean    float64   `json:"mean"`
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	Last    float64   `json:"last"`
	Since   time.Time `json:"since"`
	Until   time.Time `json:"until"`
}

func runReport(cmd *cobra.Command, args []string) error {
	locator := reportLocator
	if locator == "" {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		locator = cfg.Telemetry.Filename
	}

	handle := persistence.Open(locator, persistence.WithReadOnly())
	defer handle.Close()

	if handle.IsBroken() {
		return fmt.Errorf("opening %s: %w", locator, handle.Err())
	}

	var since time.Time
	if reportSince > 0 {
		since = time.Now().Add(-reportSince)
	}

	rows, err := buildReport(handle, reportMetrics, reportContact, since)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if reportJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	return writeReport(out, rows)
}

// buildReport queries every metric and ranks its contacts.
func buildReport(h *persistence.Handle, metrics []string, contact string, since time.Time) ([]reportRow, error) {
	rows := make([]reportRow, 0)
	for _, name := range metrics {
		samples, err := h.Query(persistence.Query{
			Metric:    name,
			ContactID: contact,
			Since:     since,
		})
		if err != nil {
			return nil, fmt.Errorf("querying %s: %w", name, err)
		}

		byContact := metric.SummarizeByContact(samples)
		for _, key := range metric.RankContacts(name, byContact) {
			s := byContact[key]
			rows = append(rows, reportRow{
				Metric:  name,
				Contact: key,
				Score:   metric.Score(name, s),
				Count:   s.Count,
				Mean:    s.Mean,
				Min:     s.Min,
				Max:     s.Max,
				Last:    s.Last,
				Since:   s.Since,
				Until:   s.Until,
			})
		}
	}
	return rows, nil
}

func writeReport(w io.Writer, rows []reportRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "no samples")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tCONTACT\tSCORE\tCOUNT\tMEAN\tMIN\tMAX\tLAST\tUNTIL")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%.3f\t%d\t%.3f\t%.3f\t%.3f\t%.3f\t%s\n",
			r.Metric, r.Contact, r.Score, r.Count, r.Mean, r.Min, r.Max, r.Last,
			r.Until.Format(time.RFC3339),
		)
	}
	return tw.Flush()
}
