// Package cli implements the ledgerctl subcommands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/pocketledger/pocketledger/internal/ledger"
)

// ExitDrift is returned by VerifyCommand when at least one account drifted.
const ExitDrift = 10

// Verifier recomputes stored balances.
type Verifier interface {
	VerifyIntegrity(ctx context.Context) (ledger.IntegrityReport, error)
}

// VerifyOptions defines available flags for the verify command.
type VerifyOptions struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// VerifySummary describes the JSON response for verify.
type VerifySummary struct {
	OK      bool          `json:"ok"`
	Checked int           `json:"checked"`
	Drifts  []DriftOutput `json:"drifts"`
}

// DriftOutput reports one account whose balance disagrees with its history.
type DriftOutput struct {
	AccountID string `json:"account_id"`
	UserID    string `json:"user_id"`
	Stored    string `json:"stored"`
	Expected  string `json:"expected"`
}

// VerifyCommand runs the integrity check inline and prints the outcome.
func VerifyCommand(ctx context.Context, verifier Verifier, opts VerifyOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	report, err := verifier.VerifyIntegrity(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "verify: %v\n", err)
		return 1
	}
	summary := buildVerifySummary(report)
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "verify: encode json: %v\n", err)
			return 1
		}
	} else {
		renderVerifyHuman(opts.Stdout, summary)
	}
	if !summary.OK {
		return ExitDrift
	}
	return 0
}

func buildVerifySummary(report ledger.IntegrityReport) VerifySummary {
	drifts := make([]DriftOutput, 0, len(report.Drifts))
	for _, d := range report.Drifts {
		drifts = append(drifts, DriftOutput{
			AccountID: d.AccountID,
			UserID:    d.UserID,
			Stored:    d.Stored.String(),
			Expected:  d.Expected.String(),
		})
	}
	sort.Slice(drifts, func(i, j int) bool {
		if drifts[i].UserID == drifts[j].UserID {
			return drifts[i].AccountID < drifts[j].AccountID
		}
		return drifts[i].UserID < drifts[j].UserID
	})
	return VerifySummary{OK: len(drifts) == 0, Checked: report.Checked, Drifts: drifts}
}

func renderVerifyHuman(w io.Writer, summary VerifySummary) {
	if summary.OK {
		_, _ = fmt.Fprintf(w, "OK: %d account(s) match their transactions\n", summary.Checked)
		return
	}
	_, _ = fmt.Fprintf(w, "DRIFT: %d of %d account(s)\n", len(summary.Drifts), summary.Checked)
	for _, d := range summary.Drifts {
		_, _ = fmt.Fprintf(w, "  account=%s user=%s stored=%s expected=%s\n", d.AccountID, d.UserID, d.Stored, d.Expected)
	}
}
