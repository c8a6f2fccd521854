package store

import "fmt"

func (s *Store) migrate(d dialect) error {
	for _, m := range d.migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
