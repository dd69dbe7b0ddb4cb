package sqlite

// SQLite schema DDL constants

const schemaNodes = `
CREATE TABLE IF NOT EXISTS nodes (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT UNIQUE NOT NULL,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    url TEXT,
    timestamp DATETIME NOT NULL,
    source TEXT NOT NULL,
    categories TEXT,
    tags TEXT,
    preview TEXT,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
)`

const schemaEdges = `
CREATE TABLE IF NOT EXISTS edges (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT UNIQUE NOT NULL,
    source_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    type TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 1.0,
    bidirectional INTEGER NOT NULL DEFAULT 0,
    label TEXT,
    metadata TEXT,
    timestamp DATETIME NOT NULL,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
)`

// Index definitions
const indexNodesSource = `CREATE INDEX IF NOT EXISTS idx_nodes_source ON nodes(source)`
const indexEdgesSource = `CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id)`
const indexEdgesTarget = `CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id)`
const indexEdgesType = `CREATE INDEX IF NOT EXISTS idx_edges_type ON edges(type)`

// SQLite pragmas for optimal performance
const pragmaWAL = `PRAGMA journal_mode=WAL`
const pragmaBusyTimeout = `PRAGMA busy_timeout=5000`
const pragmaSynchronous = `PRAGMA synchronous=NORMAL`

func allPragmas() []string {
	return []string{pragmaWAL, pragmaBusyTimeout, pragmaSynchronous}
}

func allSchemaStatements() []string {
	return []string{
		schemaNodes,
		schemaEdges,
		indexNodesSource,
		indexEdgesSource,
		indexEdgesTarget,
		indexEdgesType,
	}
}
