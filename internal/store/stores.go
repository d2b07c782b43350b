package store

// Stores is the narrow-interface view over *DB that higher components
// depend on, matching the teacher's per-concern store interface pattern —
// callers take the interface, not *DB, so tests can substitute fakes.
type Stores struct {
	Sessions SessionStore
	Cron     CronStore
	Tasks    TaskStore
	Memory   MemoryStore
	Skills   SkillStore
}

// NewStores wraps a *DB with the narrow interfaces.
func NewStores(db *DB) *Stores {
	return &Stores{
		Sessions: db,
		Cron:     db,
		Tasks:    db,
		Memory:   db,
		Skills:   db,
	}
}
