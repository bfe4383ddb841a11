package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/spf13/cobra"

	"github.com/wippyai/wasi-adapter/engine"
	"github.com/wippyai/wasi-adapter/errors"
)

const defaultTraceLimit = 1 << 16

// traceRow is one recorded flat-interface call in CSV form.
type traceRow struct {
	Seq        uint64 `csv:"seq"`
	Call       string `csv:"call"`
	Params     string `csv:"params"`
	Errno      string `csv:"errno"`
	ErrnoCode  uint16 `csv:"errno_code"`
	DurationNS int64  `csv:"duration_ns"`
}

func traceRows(records []engine.TraceRecord) []traceRow {
	rows := make([]traceRow, len(records))
	for i, r := range records {
		params := make([]string, len(r.Params))
		for j, p := range r.Params {
			params[j] = strconv.FormatUint(p, 10)
		}
		rows[i] = traceRow{
			Seq:        r.Seq,
			Call:       r.Call,
			Params:     strings.Join(params, " "),
			Errno:      r.Errno.String(),
			ErrnoCode:  uint16(r.Errno),
			DurationNS: r.Duration.Nanoseconds(),
		}
	}
	return rows
}

func writeTraceCSV(w io.Writer, rows []traceRow) error {
	csvWriter := csv.NewWriter(w)
	encoder := csvutil.NewEncoder(csvWriter)
	for _, r := range rows {
		if err := encoder.Encode(r); err != nil {
			return err
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

func writeTraceFile(path string, rows []traceRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trace file: %w", err)
	}
	if err := writeTraceCSV(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("write trace file: %w", err)
	}
	return f.Close()
}

func readTraceCSV(r io.Reader) ([]traceRow, error) {
	decoder, err := csvutil.NewDecoder(csv.NewReader(r))
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.ParseFailed("trace header", err)
	}
	var rows []traceRow
	for {
		var row traceRow
		if err := decoder.Decode(&row); err == io.EOF {
			return rows, nil
		} else if err != nil {
			return nil, errors.ParseFailed(fmt.Sprintf("trace row %d", len(rows)+1), err)
		}
		rows = append(rows, row)
	}
}

type callSummary struct {
	Call   string
	Count  int
	Errors int
	Total  time.Duration
}

// summarize aggregates rows per call, most frequent first.
func summarize(rows []traceRow) []callSummary {
	byCall := make(map[string]*callSummary)
	for _, r := range rows {
		s := byCall[r.Call]
		if s == nil {
			s = &callSummary{Call: r.Call}
			byCall[r.Call] = s
		}
		s.Count++
		if r.ErrnoCode != 0 {
			s.Errors++
		}
		s.Total += time.Duration(r.DurationNS)
	}
	out := make([]callSummary, 0, len(byCall))
	for _, s := range byCall {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Call < out[j].Call
	})
	return out
}

func printSummary(w io.Writer, rows []traceRow) {
	fmt.Fprintf(w, "%-24s %8s %8s %14s\n", "CALL", "COUNT", "ERRORS", "TIME")
	for _, s := range summarize(rows) {
		fmt.Fprintf(w, "%-24s %8d %8d %14s\n", s.Call, s.Count, s.Errors, s.Total)
	}
}

func traceCommand() *cobra.Command {
	var interactive bool

	command := &cobra.Command{
		Use:   "trace [flags] trace.csv",
		Short: "summarize or browse a recorded call trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open trace: %w", err)
			}
			defer f.Close()

			rows, err := readTraceCSV(f)
			if err != nil {
				return err
			}
			if interactive {
				return runViewer(args[0], rows, 0)
			}
			printSummary(cmd.OutOrStdout(), rows)
			return nil
		},
	}

	command.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse the trace")

	return command
}
