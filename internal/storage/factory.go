package storage

import "fmt"

// Options selects and configures a backend. SQLitePath applies to the sqlite
// backend; MongoURI and MongoDatabase to the mongo backend.
type Options struct {
	Backend       string
	SQLitePath    string
	MongoURI      string
	MongoDatabase string
}

func NewStore(opts Options) (Store, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(opts.SQLitePath)
	case "mongo":
		return newMongoStore(opts.MongoURI, opts.MongoDatabase)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", opts.Backend)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
