package store

import (
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/clade/internal/clerr"
)

func conflictf(format string, args ...any) error {
	return clerr.New(clerr.Conflict, fmt.Sprintf(format, args...))
}

// isUniqueViolation detects sqlite's UNIQUE constraint failure message.
// modernc.org/sqlite returns plain *sqlite.Error whose message text carries
// "UNIQUE constraint failed" — there is no typed sentinel to match against.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
