package student

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/acadhub/backend/core/store"
)

// rollPrefix is the academy prefix carried by every roll number.
const rollPrefix = "LLA"

// maxCourseCodeLen caps the course code segment of a roll number.
const maxCourseCodeLen = 4

// CourseCode derives the roll-number course code: the upper-cased first
// letter of each word in the course name, capped at 4 letters.
// "Criminal Law Advanced" -> "CLA".
func CourseCode(courseName string) string {
	var code strings.Builder
	for _, word := range strings.Fields(courseName) {
		if code.Len() == maxCourseCodeLen {
			break
		}
		code.WriteString(strings.ToUpper(word[:1]))
	}
	return code.String()
}

// FormatRoll renders a roll number as LLA<CODE><YY><NNNN>: course code,
// two-digit enrollment year, 4-digit zero-padded sequence.
func FormatRoll(courseName string, year, seq int) string {
	return fmt.Sprintf("%s%s%02d%04d", rollPrefix, CourseCode(courseName), year%100, seq)
}

// allocateRoll reserves the next sequence number for (course, year) via
// an atomic increment on a counter document and returns the formatted
// roll. Sequences are allocated serially, so two concurrent
// registrations can no longer mint the same roll; a registration that
// fails after allocation burns its number, leaving a gap rather than a
// duplicate.
func allocateRoll(ctx context.Context, st store.Store, courseID, courseName string, year int) (string, error) {
	counterID := fmt.Sprintf("%s:%d", courseID, year)
	seq, err := st.Collection(store.Counters).IncrementAndGet(ctx, counterID, "seq", 1)
	if err != nil {
		return "", errors.Wrap(err, "allocating roll sequence")
	}
	return FormatRoll(courseName, year, int(seq)), nil
}
