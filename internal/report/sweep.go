package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/newthinker/rotator/internal/storage/archive"
	"github.com/newthinker/rotator/internal/sweep"
)

// TrialsFile holds one row per sweep trial.
const TrialsFile = "trials.csv"

// SweepPrefix is the archive directory for one sweep.
func SweepPrefix(id string) string {
	return path.Join("sweeps", id)
}

// WriteTrialsCSV writes trials in ranked order.
func WriteTrialsCSV(w io.Writer, rep *sweep.Report) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"rank", "trial_id", "lookback_period", "absolute_threshold", "position_count",
		"strength_method", rep.Objective, "final_value", "trades", "error"})
	for i, t := range rep.Trials {
		cw.Write([]string{
			strconv.Itoa(i + 1), t.ID,
			strconv.Itoa(t.Config.LookbackPeriod), ftoa(t.Config.AbsoluteThreshold),
			strconv.Itoa(t.Config.PositionCount), string(t.Config.StrengthMethod),
			ftoa(t.Score), ftoa(t.FinalValue), strconv.Itoa(t.Trades), t.Error,
		})
	}
	cw.Flush()
	return cw.Error()
}

// ArchiveSweep writes the sweep summary and trial table to store.
func ArchiveSweep(ctx context.Context, store archive.Storage, rep *sweep.Report) ([]string, error) {
	summary, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding sweep summary: %w", err)
	}
	var trials strings.Builder
	if err := WriteTrialsCSV(&trials, rep); err != nil {
		return nil, err
	}

	var written []string
	for name, data := range map[string][]byte{
		SummaryFile: summary,
		TrialsFile:  []byte(trials.String()),
	} {
		p := path.Join(SweepPrefix(rep.ID), name)
		if err := store.Write(ctx, p, data); err != nil {
			return written, fmt.Errorf("archiving %s: %w", p, err)
		}
		written = append(written, p)
	}
	return written, nil
}

// PrintSweep writes the top trials as a table. top < 1 prints all.
func PrintSweep(w io.Writer, rep *sweep.Report, top int) error {
	fmt.Fprintf(w, "Sweep %s (%s, ranked by %s): %d trials, %d failed, %s\n\n",
		rep.ID, rep.Searcher, rep.Objective, len(rep.Trials), rep.Failed, formatDuration(rep.Duration))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "RANK\tLOOKBACK\tTHRESHOLD\tPOSITIONS\tSTRENGTH\t%s\tFINAL VALUE\tTRADES\n", strings.ToUpper(rep.Objective))
	for i, t := range rep.Trials {
		if top > 0 && i >= top {
			break
		}
		if !t.OK() {
			fmt.Fprintf(tw, "-\t%d\t%.4f\t%d\t%s\tfailed: %s\t\t\n",
				t.Config.LookbackPeriod, t.Config.AbsoluteThreshold, t.Config.PositionCount, t.Config.StrengthMethod, t.Error)
			continue
		}
		fmt.Fprintf(tw, "%d\t%d\t%.4f\t%d\t%s\t%.4f\t%.2f\t%d\n",
			i+1, t.Config.LookbackPeriod, t.Config.AbsoluteThreshold, t.Config.PositionCount,
			t.Config.StrengthMethod, t.Score, t.FinalValue, t.Trades)
	}
	return tw.Flush()
}
