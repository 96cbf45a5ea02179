// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Manifests and chapter fragments are ordinary rows; only the key tells them apart.
const schema = `
CREATE TABLE IF NOT EXISTS entries (
	key          TEXT PRIMARY KEY,
	value        BLOB,
	size         INTEGER NOT NULL DEFAULT 0,
	createdAt    INTEGER NOT NULL,
	lastAccessed INTEGER NOT NULL,
	accessCount  INTEGER NOT NULL DEFAULT 0,
	expiresAt    INTEGER,
	metadata     TEXT
);
CREATE INDEX IF NOT EXISTS idx_entries_expiresAt ON entries(expiresAt);
CREATE INDEX IF NOT EXISTS idx_entries_lastAccessed ON entries(lastAccessed);
CREATE INDEX IF NOT EXISTS idx_entries_createdAt ON entries(createdAt);
`

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
