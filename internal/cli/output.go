package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"ContractFinder/internal/domain"
	"ContractFinder/internal/usecase"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// ingestOutput is the JSON shape of an ingestion run, with per-fetch diagnostics.
type ingestOutput struct {
	usecase.IngestResult
	Inserted int                    `json:"inserted"`
	Updated  int                    `json:"updated"`
	Degraded bool                   `json:"degraded"`
	Sources  []usecase.SourceReport `json:"sources"`
}

// WriteIngest writes the run summary in the specified format.
func WriteIngest(w io.Writer, result usecase.IngestResult, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, ingestOutput{
			IngestResult: result,
			Inserted:     result.Inserted,
			Updated:      result.Updated,
			Degraded:     result.Degraded(),
			Sources:      result.Sources,
		})
	case FormatText:
		return writeIngestText(w, result)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteLeads writes leads in the specified format.
func WriteLeads(w io.Writer, leads []domain.ContractAward, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, leads)
	case FormatText:
		return writeLeadsText(w, leads)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeIngestText(w io.Writer, result usecase.IngestResult) error {
	fmt.Fprintf(w, "KYTC: %d  INDOT: %d  processed: %d  upserted: %d (new %d, updated %d)\n",
		result.KYTCCount, result.INDOTCount, result.TotalProcessed, result.TotalUpserted,
		result.Inserted, result.Updated)

	for _, src := range result.Sources {
		for _, fetch := range src.Fetches {
			label := src.Site
			if fetch.LettingDate != "" {
				label += " " + fetch.LettingDate
			}
			if fetch.Error != "" {
				fmt.Fprintf(w, "  FAILED %s: %s\n", label, fetch.Error)
				continue
			}
			fmt.Fprintf(w, "  ok     %s: %d records\n", label, fetch.Records)
		}
	}
	return nil
}

func writeLeadsText(w io.Writer, leads []domain.ContractAward) error {
	if len(leads) == 0 {
		fmt.Fprintln(w, "No leads found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tCONTRACT\tSCORE\tSTATUS\tLETTING\tAWARDED TO\tDESCRIPTION")
	for _, lead := range leads {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			lead.ID, lead.State, lead.ContractID, lead.Score, lead.Status,
			lead.LettingDate, lead.AwardedTo, truncate(lead.Description, 60))
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}
