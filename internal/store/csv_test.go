package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestionvital/prospector/internal/lead"
)

func tempStore(t *testing.T) *CSVStore {
	t.Helper()
	return NewCSVStore(filepath.Join(t.TempDir(), "leads.csv"))
}

func TestLoadMissingFile(t *testing.T) {
	s := tempStore(t)
	leads, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := tempStore(t)

	in := []lead.Lead{
		{ID: "a1", Name: "Dental Sur", Location: "Temuco", Category: "Dental Clinic",
			Status: lead.StatusContacted, Phone: "56971234567",
			LastContactAt: "14/03/2026 11:20", SequenceStep: 2},
		{ID: "b2", Name: "Centro Andes", Location: "Pucon", Category: "Medical Center",
			Status: lead.StatusNew, Phone: "968887777"},
	}
	require.NoError(t, s.Save(in))

	out, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLoadBackfillsMissingColumns(t *testing.T) {
	s := tempStore(t)

	// Legacy file: no Status, SequenceStep or LastContactAt columns.
	csv := "Id,Name,Phone\n" +
		"x1,Clinica Norte,971112222\n"
	require.NoError(t, os.WriteFile(s.Path(), []byte(csv), 0644))

	leads, err := s.Load()
	require.NoError(t, err)
	require.Len(t, leads, 1)

	got := leads[0]
	assert.Equal(t, "x1", got.ID)
	assert.Equal(t, lead.StatusNew, got.Status)
	assert.Equal(t, 0, got.SequenceStep)
	assert.Equal(t, "", got.LastContactAt)
	assert.Equal(t, "", got.Location)
}

func TestLoadIgnoresUnknownColumnsAndBadSteps(t *testing.T) {
	s := tempStore(t)

	csv := "Id,Name,Status,SequenceStep,Notes,Phone,Location,Category,LastContactAt\n" +
		"x1,Clinica Norte,Contacted,not-a-number,some note,971112222,Villarrica,Dental Clinic,10/03/2026 09:00\n" +
		"x2,Otro,Bogus,2,,972223333,Pucon,Dental Clinic,\n"
	require.NoError(t, os.WriteFile(s.Path(), []byte(csv), 0644))

	leads, err := s.Load()
	require.NoError(t, err)
	require.Len(t, leads, 2)

	assert.Equal(t, 0, leads[0].SequenceStep, "unparsable step defaults to 0")
	assert.Equal(t, lead.StatusContacted, leads[0].Status)
	assert.Equal(t, lead.StatusNew, leads[1].Status, "unknown status defaults to New")
}

func TestSaveIsAtomic(t *testing.T) {
	s := tempStore(t)

	require.NoError(t, s.Save([]lead.Lead{{ID: "a", Name: "One", Status: lead.StatusNew}}))
	require.NoError(t, s.Save([]lead.Lead{{ID: "b", Name: "Two", Status: lead.StatusNew}}))

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".leads-"), "leftover temp file %s", e.Name())
	}

	leads, err := s.Load()
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "b", leads[0].ID)
}
