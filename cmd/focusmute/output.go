package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/focusmute/focusmute/internal/catalog"
	"github.com/focusmute/focusmute/internal/models"
	"github.com/focusmute/focusmute/pkg/utils"
	"github.com/focusmute/focusmute/pkg/window"
	"gopkg.in/yaml.v3"
)

// printYAML serializes v to w as YAML.
func printYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}
	return enc.Close()
}

// printJSON serializes v to w as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}

// printStructured renders v in the requested format; ok is false for text
func printStructured(w io.Writer, format string, v interface{}) (bool, error) {
	switch format {
	case "yaml":
		return true, printYAML(w, v)
	case "json":
		return true, printJSON(w, v)
	default:
		return false, nil
	}
}

func printEntries(w io.Writer, entries []catalog.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No windowed processes found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HANDLE\tPID\tWATCHED\tLABEL")
	for _, e := range entries {
		watched := ""
		if e.Watched {
			watched = "yes"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", e.Handle, e.PID, watched, e.Label)
	}
	return tw.Flush()
}

// processRow is one line of "list --all"
type processRow struct {
	PID    uint32        `json:"pid" yaml:"pid"`
	Name   string        `json:"name" yaml:"name"`
	Handle window.Handle `json:"handle,omitempty" yaml:"handle,omitempty"`
	Title  string        `json:"title,omitempty" yaml:"title,omitempty"`
}

func printProcesses(w io.Writer, rows []processRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tNAME\tHANDLE\tTITLE")
	for _, r := range rows {
		handle := "-"
		if r.Handle != 0 {
			handle = r.Handle.String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.PID, r.Name, handle, r.Title)
	}
	return tw.Flush()
}

func printEvents(w io.Writer, events []*models.MuteEvent) error {
	if len(events) == 0 {
		_, err := fmt.Fprintln(w, "No mute commands recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tPROCESS\tSTATE\tREASON\tSESSIONS\tFOCUSED")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.ProcessName,
			utils.MuteLabel(e.Muted),
			e.Reason,
			e.Matched,
			e.FocusedHandle)
	}
	return tw.Flush()
}
