package csvsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sheet.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp csv: %v", err)
	}
	return path
}

func TestRowsReadsInOrder(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "Company,Interviewer,Interviewer Email,Candidate,Candidate Email,Scheduling method,Added On\n"+
		"Acme,Sam,sam@acme.dev,Jo,jo@x.com,\"Round1: https://calendly.com/a\",03 Nov 6:15\n"+
		"Globex,Kim,kim@globex.dev,Al,al@y.com,Round 1,04 Nov 9:30\n")

	src := NewFileSource(path, nil)
	rows, err := src.Rows(context.Background())
	if err != nil {
		t.Fatalf("Rows returned error: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	first := rows[0]
	if first.Company != "Acme" || first.Candidate != "Jo" || first.CandidateEmail != "jo@x.com" {
		t.Errorf("first row = %+v", first)
	}
	if first.SchedulingText != "Round1: https://calendly.com/a" {
		t.Errorf("scheduling text = %q", first.SchedulingText)
	}
	if first.AddedOnRaw != "03 Nov 6:15" {
		t.Errorf("added on = %q", first.AddedOnRaw)
	}
	if first.Ordinal != 0 || rows[1].Ordinal != 1 {
		t.Errorf("ordinals = %d, %d, want 0, 1", first.Ordinal, rows[1].Ordinal)
	}
}

func TestRowsHeaderIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "COMPANY,candidate,CANDIDATE EMAIL,Scheduling Method,added on\n"+
		"Acme,Jo,jo@x.com,Round 1,03 Nov 6:15\n")

	src := NewFileSource(path, nil)
	rows, err := src.Rows(context.Background())
	if err != nil {
		t.Fatalf("Rows returned error: %v", err)
	}
	if len(rows) != 1 || rows[0].Company != "Acme" {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].Interviewer != "" {
		t.Errorf("absent optional column must read empty, got %q", rows[0].Interviewer)
	}
}

func TestRowsHeaderWithByteOrderMark(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "\ufeffCompany,Candidate,Candidate Email,Scheduling method,Added On\n"+
		"Acme,Jo,jo@x.com,Round 1,03 Nov 6:15\n")

	src := NewFileSource(path, nil)
	rows, err := src.Rows(context.Background())
	if err != nil {
		t.Fatalf("Rows returned error: %v", err)
	}
	if len(rows) != 1 || rows[0].Company != "Acme" {
		t.Fatalf("rows = %+v, want the BOM-prefixed header recognized", rows)
	}
}

func TestRowsShortRecordsReadEmpty(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "Company,Candidate,Candidate Email,Scheduling method,Added On\n"+
		"Acme,Jo\n")

	src := NewFileSource(path, nil)
	rows, err := src.Rows(context.Background())
	if err != nil {
		t.Fatalf("Rows returned error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].CandidateEmail != "" || rows[0].AddedOnRaw != "" {
		t.Errorf("short record fields must read empty: %+v", rows[0])
	}
}

func TestRowsMissingRequiredColumn(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "Company,Candidate,Scheduling method,Added On\n"+
		"Acme,Jo,Round 1,03 Nov 6:15\n")

	src := NewFileSource(path, nil)
	if _, err := src.Rows(context.Background()); err == nil {
		t.Fatal("Rows must fail when a required column is missing")
	}
}

func TestRowsMissingFile(t *testing.T) {
	t.Parallel()

	src := NewFileSource(filepath.Join(t.TempDir(), "absent.csv"), nil)
	if _, err := src.Rows(context.Background()); err == nil {
		t.Fatal("Rows must fail for an absent file")
	}
}
