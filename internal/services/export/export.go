// Package export serializes verifications and reports for dashboard
// download. CSV escaping must be lossless for embedded commas and quotes;
// list-valued fields are JSON-encoded into a single cell for the same reason.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"factline/internal/domain"
)

var verificationHeader = []string{
	"id", "channel", "sender", "text", "verdict", "confidence",
	"state", "reasoning", "sources", "created_at", "last_transitioned_at",
}

// VerificationsCSV writes recs as CSV, header first.
func VerificationsCSV(w io.Writer, recs []domain.VerificationRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(verificationHeader); err != nil {
		return err
	}
	for _, rec := range recs {
		reasoning, err := json.Marshal(rec.Reasoning)
		if err != nil {
			return err
		}
		sources, err := json.Marshal(rec.Sources)
		if err != nil {
			return err
		}
		row := []string{
			rec.ID,
			string(rec.Channel),
			rec.Sender,
			rec.Text,
			string(rec.Verdict),
			strconv.FormatFloat(rec.Confidence, 'g', -1, 64),
			string(rec.State),
			string(reasoning),
			string(sources),
			rec.CreatedAt.Format(time.RFC3339Nano),
			rec.LastTransitionedAt.Format(time.RFC3339Nano),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ParseVerificationsCSV is the inverse of VerificationsCSV. Dashboards and
// tests use it to re-import exported data.
func ParseVerificationsCSV(r io.Reader) ([]domain.VerificationRecord, error) {
	cr := csv.NewReader(r)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty csv")
	}
	var out []domain.VerificationRecord
	for _, row := range rows[1:] {
		if len(row) != len(verificationHeader) {
			return nil, fmt.Errorf("row has %d fields, want %d", len(row), len(verificationHeader))
		}
		confidence, err := strconv.ParseFloat(row[5], 64)
		if err != nil {
			return nil, fmt.Errorf("confidence %q: %w", row[5], err)
		}
		var reasoning []string
		if err := json.Unmarshal([]byte(row[7]), &reasoning); err != nil {
			return nil, fmt.Errorf("reasoning: %w", err)
		}
		var sources []domain.Source
		if err := json.Unmarshal([]byte(row[8]), &sources); err != nil {
			return nil, fmt.Errorf("sources: %w", err)
		}
		createdAt, err := time.Parse(time.RFC3339Nano, row[9])
		if err != nil {
			return nil, err
		}
		transitionedAt, err := time.Parse(time.RFC3339Nano, row[10])
		if err != nil {
			return nil, err
		}
		out = append(out, domain.VerificationRecord{
			ID:                 row[0],
			Channel:            domain.Channel(row[1]),
			Sender:             row[2],
			Text:               row[3],
			Verdict:            domain.Verdict(row[4]),
			Confidence:         confidence,
			State:              domain.State(row[6]),
			Reasoning:          reasoning,
			Sources:            sources,
			CreatedAt:          createdAt,
			LastTransitionedAt: transitionedAt,
		})
	}
	return out, nil
}

// CasesCSV writes direct-report cases as CSV.
func CasesCSV(w io.Writer, cases []domain.Case) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "sender_phone", "incident_type", "description", "amount_lost", "evidence", "verification_id", "created_at"}); err != nil {
		return err
	}
	for _, c := range cases {
		evidence, err := json.Marshal(c.Evidence)
		if err != nil {
			return err
		}
		row := []string{
			c.ID,
			c.SenderPhone,
			c.IncidentType,
			c.Description,
			strconv.FormatFloat(c.AmountLost, 'g', -1, 64),
			string(evidence),
			c.VerificationID,
			c.CreatedAt.Format(time.RFC3339Nano),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
