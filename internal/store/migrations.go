package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Scenes table - stores virtual-set scene definitions
		`CREATE TABLE IF NOT EXISTS scenes (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			background_ref TEXT NOT NULL DEFAULT '',
			key_color TEXT NOT NULL DEFAULT '#00ff00',
			threshold REAL NOT NULL DEFAULT 60,
			smoothing REAL NOT NULL DEFAULT 40,
			feathering INTEGER NOT NULL DEFAULT 2,
			anti_alias INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Index for catalog listings ordered by recency
		`CREATE INDEX IF NOT EXISTS idx_scenes_created_at ON scenes(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
