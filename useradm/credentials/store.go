package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store appends generated secrets to an owner-only artifact scoped to
// the current calendar day. The engine only ever writes here; nothing
// reads the file back.
type Store struct {
	Dir string
}

// Record appends one "username:secret" line. Existing lines are never
// rewritten.
func (s *Store) Record(username, secret string) error {
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return fmt.Errorf("creating credential dir: %w", err)
	}

	name := fmt.Sprintf("credentials_%s.txt", time.Now().Format("2006-01-02"))
	path := filepath.Join(s.Dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("opening credential file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s:%s\n", username, secret); err != nil {
		return fmt.Errorf("recording credential: %w", err)
	}
	return nil
}
