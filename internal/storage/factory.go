package storage

import (
	"context"
	"fmt"
)

const (
	EngineJSON   = "json"
	EngineSQLite = "sqlite"
	EngineMemory = "memory"
)

// Options selects and configures an engine.
type Options struct {
	Engine string
	Path   string
	// Watch enables reloading the JSON document when another process rewrites it.
	Watch bool
}

// Open creates the engine named by opts.Engine. An empty name selects the JSON engine.
func Open(ctx context.Context, opts Options) (Engine, error) {
	switch opts.Engine {
	case EngineJSON, "":
		return OpenJSON(ctx, opts.Path, opts.Watch)
	case EngineSQLite:
		return OpenSQLite(ctx, opts.Path)
	case EngineMemory:
		return NewMemoryEngine(), nil
	default:
		return nil, fmt.Errorf("unknown storage engine: %s (supported: %s, %s, %s)", opts.Engine, EngineJSON, EngineSQLite, EngineMemory)
	}
}
