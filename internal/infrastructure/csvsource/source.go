package csvsource

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"InterviewNotifier/internal/domain"
	"InterviewNotifier/internal/ports"
)

// Column headers expected in the scheduling sheet export, matched
// case-insensitively against the CSV header row.
const (
	colCompany          = "company"
	colInterviewer      = "interviewer"
	colInterviewerEmail = "interviewer email"
	colCandidate        = "candidate"
	colCandidateEmail   = "candidate email"
	colScheduling       = "scheduling method"
	colAddedOn          = "added on"
)

var requiredColumns = []string{
	colCompany,
	colCandidate,
	colCandidateEmail,
	colScheduling,
	colAddedOn,
}

// FileSource reads scheduling rows from a CSV export on disk.
type FileSource struct {
	path   string
	logger *slog.Logger
}

var _ ports.RowSource = (*FileSource)(nil)

// NewFileSource wires a CSV file path.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	return &FileSource{path: path, logger: logger}
}

// Name identifies the source inside the registry.
func (s *FileSource) Name() string {
	return "csv"
}

// Rows loads the whole file in input order. Individually malformed rows are
// warned and dropped; a missing file or missing required column is an error.
func (s *FileSource) Rows(ctx context.Context) ([]domain.Row, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	return s.read(ctx, f)
}

func (s *FileSource) read(ctx context.Context, r io.Reader) ([]domain.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := map[string]int{}
	for i, col := range header {
		// Excel/Sheets exports prefix the first cell with a UTF-8 BOM.
		col = strings.TrimPrefix(col, "\ufeff")
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}

	field := func(rec []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []domain.Row
	ordinal := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.warn("malformed csv row dropped", "row", ordinal, "error", err)
			ordinal++
			continue
		}

		rows = append(rows, domain.Row{
			Company:          field(rec, colCompany),
			Interviewer:      field(rec, colInterviewer),
			InterviewerEmail: field(rec, colInterviewerEmail),
			Candidate:        field(rec, colCandidate),
			CandidateEmail:   field(rec, colCandidateEmail),
			SchedulingText:   field(rec, colScheduling),
			AddedOnRaw:       field(rec, colAddedOn),
			Ordinal:          ordinal,
		})
		ordinal++
	}

	return rows, nil
}

func (s *FileSource) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
