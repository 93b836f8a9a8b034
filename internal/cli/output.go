// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-presence.
//
// go-presence is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jeremyhahn/go-presence/pkg/offline"
	"github.com/jeremyhahn/go-presence/pkg/types"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
	pretty bool
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// Pretty enables indented JSON output.
func (p *Printer) Pretty(pretty bool) *Printer {
	p.pretty = pretty
	return p
}

// PrintReport prints an offline pack verification report.
func (p *Printer) PrintReport(report *offline.Report) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(report)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Pack: %s\n", report.PackDir)
		fmt.Fprintf(p.writer, "Receipts: %d\n", report.ReceiptCount)
		if report.PolicyVer != "" {
			fmt.Fprintf(p.writer, "Policy: %s (%s)\n", report.PolicyVer, report.PolicyHash)
		}
		for _, st := range report.Stages {
			status := "ok"
			if !st.OK {
				status = fmt.Sprintf("FAIL [%s] %s", st.Code, st.Detail)
			}
			fmt.Fprintf(p.writer, "  %-16s %s\n", st.Stage, status)
		}
		fmt.Fprintf(p.writer, "Result: %s\n", verdict(report.OK))
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintVerdict prints a single named verification verdict.
func (p *Printer) PrintVerdict(ok bool, fields map[string]any) error {
	switch p.format {
	case OutputFormatJSON:
		out := map[string]any{"ok": ok}
		for k, v := range fields {
			out[k] = v
		}
		return p.printJSON(out)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Result: %s\n", verdict(ok))
		for k, v := range fields {
			fmt.Fprintf(p.writer, "  %s: %v\n", k, v)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintChallenge prints an issued challenge record.
func (p *Printer) PrintChallenge(rec *types.ChallengeRecord) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(rec)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Challenge: %s\n", rec.ChallengeID)
		fmt.Fprintf(p.writer, "  aud:        %s\n", rec.Aud)
		fmt.Fprintf(p.writer, "  purpose:    %s\n", rec.Purpose)
		fmt.Fprintf(p.writer, "  actionHash: %s\n", rec.ActionHash)
		fmt.Fprintf(p.writer, "  expiresAt:  %s\n", rec.ExpiresAt)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]any{
			"status": "error",
			"error":  err.Error(),
		})
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

func (p *Printer) printJSON(data any) error {
	encoder := json.NewEncoder(p.writer)
	if p.pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

func verdict(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}
