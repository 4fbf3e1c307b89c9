package memorystorage

import (
	"github.com/mapmyfamily/familyapi/internal/db/jsondb"
)

// MemoryStorage keeps documents in process memory only. It is the fallback
// backend when no database is configured.
type MemoryStorage struct {
	*jsondb.JSONDB
}

func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: &jsondb.JSONDB{
			Cache: jsondb.NewCache(),
		},
	}, nil
}

func (theStorage *MemoryStorage) Close() error {
	return nil
}
