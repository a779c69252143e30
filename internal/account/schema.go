package account

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/roach88/lanatus/internal/engine"
	"github.com/roach88/lanatus/internal/session"
	"github.com/roach88/lanatus/internal/store"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// EnsureSchema creates the account tables if they do not exist.
func EnsureSchema(ctx context.Context, e *engine.Engine, dialect store.Dialect) error {
	script, err := schemaFS.ReadFile("schema/" + string(dialect) + ".sql")
	if err != nil {
		return fmt.Errorf("no schema for dialect %q: %w", dialect, err)
	}

	return e.WithSession(ctx, func(ctx context.Context, s *session.Session) error {
		for _, stmt := range strings.Split(string(script), ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := s.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
		}
		return nil
	})
}
