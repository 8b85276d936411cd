package student

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/acadhub/backend/core/store"
	inmemstore "github.com/acadhub/backend/storage/entitystore/inmem"
)

func TestCourseCode(t *testing.T) {
	tests := []struct {
		name       string
		courseName string
		want       string
	}{
		{"multi word", "Criminal Law Advanced", "CLA"},
		{"single word", "Judiciary", "J"},
		{"capped at four", "Five Word Course Name Here", "FWCN"},
		{"lowercase input", "criminal law", "CL"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CourseCode(tt.courseName))
		})
	}
}

func TestFormatRoll(t *testing.T) {
	tests := []struct {
		name       string
		courseName string
		year       int
		seq        int
		want       string
	}{
		{"fourth of the year", "Criminal Law Advanced", 2024, 4, "LLACLA240004"},
		{"first of the year", "Judiciary", 2026, 1, "LLAJ260001"},
		{"large sequence", "Judiciary", 2024, 1234, "LLAJ241234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatRoll(tt.courseName, tt.year, tt.seq))
		})
	}
}

func TestAllocateRollSerializes(t *testing.T) {
	db := inmemstore.Open()
	defer db.Close()
	ctx := context.Background()

	r1, err := allocateRoll(ctx, db, "crs1", "Criminal Law Advanced", 2024)
	if err != nil {
		t.Fatalf("allocateRoll() failed: %v", err)
	}
	r2, _ := allocateRoll(ctx, db, "crs1", "Criminal Law Advanced", 2024)
	assert.Equal(t, "LLACLA240001", r1)
	assert.Equal(t, "LLACLA240002", r2)

	// per-course and per-year counters are independent
	r3, _ := allocateRoll(ctx, db, "crs2", "Judiciary", 2024)
	assert.Equal(t, "LLAJ240001", r3)
	r4, _ := allocateRoll(ctx, db, "crs1", "Criminal Law Advanced", 2025)
	assert.Equal(t, "LLACLA250001", r4)

	// a burnt allocation leaves a gap, never a duplicate
	seq, _ := db.Collection(store.Counters).IncrementAndGet(ctx, "crs1:2024", "seq", 1)
	assert.Equal(t, int64(3), seq)
	r5, _ := allocateRoll(ctx, db, "crs1", "Criminal Law Advanced", 2024)
	assert.Equal(t, "LLACLA240004", r5)
}
