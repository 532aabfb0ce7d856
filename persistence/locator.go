package persistence

import (
	"fmt"
	"strings"
)

// Locator schemes.
const (
	SchemeNone    = ""
	SchemeMemory  = "memory"
	SchemeLevelDB = "leveldb"
	SchemeBadger  = "badger"
)

// Locator is a parsed persistence locator.
//
//	""              no persistence
//	memory:         in-memory store
//	leveldb:<path>  LevelDB store at path
//	badger:<path>   BadgerDB store at path
//	<path>          LevelDB store at path
type Locator struct {
	Scheme string
	Path   string
}

// ParseLocator parses a persistence locator string.
func ParseLocator(s string) (Locator, error) {
	if s == "" {
		return Locator{Scheme: SchemeNone}, nil
	}

	scheme, path, ok := strings.Cut(s, ":")
	if !ok || !isScheme(scheme) {
		return Locator{Scheme: SchemeLevelDB, Path: s}, nil
	}

	switch scheme {
	case SchemeMemory:
		return Locator{Scheme: SchemeMemory}, nil
	case SchemeLevelDB, SchemeBadger:
		if path == "" {
			return Locator{}, fmt.Errorf("%w: %s", ErrEmptyStorePath, scheme)
		}
		return Locator{Scheme: scheme, Path: path}, nil
	default:
		return Locator{}, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
}

// String returns the locator in its textual form.
func (l Locator) String() string {
	switch l.Scheme {
	case SchemeNone:
		return ""
	case SchemeMemory:
		return SchemeMemory + ":"
	default:
		return l.Scheme + ":" + l.Path
	}
}

// isScheme reports whether s looks like a scheme rather than a path
// component. Single letters are treated as drive names.
func isScheme(s string) bool {
	if len(s) < 2 {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// openStore opens the backend a locator names.
func openStore(loc Locator, o *handleOptions) (Store, error) {
	switch loc.Scheme {
	case SchemeNone:
		return NewNoOpStore(), nil
	case SchemeMemory:
		return NewMemoryStore(), nil
	case SchemeLevelDB:
		return NewLevelDBStoreWithOptions(loc.Path, &LevelDBOptions{
			Sync:     o.sync,
			ReadOnly: o.readOnly,
		})
	case SchemeBadger:
		bopts := DefaultBadgerDBOptions()
		bopts.SyncWrites = o.sync
		bopts.ReadOnly = o.readOnly
		bopts.Logger = o.logger
		return NewBadgerDBStoreWithOptions(loc.Path, bopts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, loc.Scheme)
	}
}
