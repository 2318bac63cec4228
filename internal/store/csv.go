// Package store persists the lead collection as a flat CSV file and
// optionally mirrors snapshots to S3.
package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gestionvital/prospector/internal/lead"
)

// columns is the canonical schema, in file order. Loading backfills any
// column missing from the header with its default; saving always writes
// the full set.
var columns = []string{"Id", "Name", "Location", "Category", "Status", "Phone", "LastContactAt", "SequenceStep"}

// columnDefaults declares the backfill value per column, in one place
// rather than scattered conditionals.
var columnDefaults = map[string]string{
	"Id":            "",
	"Name":          "",
	"Location":      "",
	"Category":      "",
	"Status":        string(lead.StatusNew),
	"Phone":         "",
	"LastContactAt": "",
	"SequenceStep":  "0",
}

// CSVStore reads and writes the lead file. A missing file loads as an
// empty collection so a first cycle can bootstrap it via discovery.
type CSVStore struct {
	path string
}

// NewCSVStore creates a store over the given file path.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the backing file path.
func (s *CSVStore) Path() string { return s.path }

// Load reads the full lead collection, normalizing the schema: unknown
// header columns are ignored, missing ones take their declared default.
func (s *CSVStore) Load() ([]lead.Lead, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return []lead.Lead{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening lead file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading lead file: %w", err)
	}
	if len(rows) == 0 {
		return []lead.Lead{}, nil
	}

	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		index[strings.TrimSpace(name)] = i
	}

	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return columnDefaults[name]
		}
		return strings.TrimSpace(row[i])
	}

	leads := make([]lead.Lead, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		step, err := strconv.Atoi(field(row, "SequenceStep"))
		if err != nil {
			step = 0
		}
		status := lead.Status(field(row, "Status"))
		if !status.Valid() {
			status = lead.StatusNew
		}
		leads = append(leads, lead.Lead{
			ID:            field(row, "Id"),
			Name:          field(row, "Name"),
			Location:      field(row, "Location"),
			Category:      field(row, "Category"),
			Status:        status,
			Phone:         field(row, "Phone"),
			LastContactAt: field(row, "LastContactAt"),
			SequenceStep:  step,
		})
	}
	return leads, nil
}

// Save writes the full collection atomically: temp file in the same
// directory, fsync, then rename over the original. A crash mid-cycle loses
// at most the attempt whose Save did not complete.
func (s *CSVStore) Save(leads []lead.Lead) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating lead file directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".leads-*.csv")
	if err != nil {
		return fmt.Errorf("creating temp lead file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)
	if err := w.Write(columns); err != nil {
		tmp.Close()
		return fmt.Errorf("writing header: %w", err)
	}
	for _, l := range leads {
		row := []string{
			l.ID,
			l.Name,
			l.Location,
			l.Category,
			string(l.Status),
			l.Phone,
			l.LastContactAt,
			strconv.Itoa(l.SequenceStep),
		}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("writing lead %s: %w", l.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing lead file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing lead file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing lead file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing lead file: %w", err)
	}
	return nil
}
