package sqlstore

import (
	"errors"
	"regexp"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgUndefinedColumn is the Postgres error code for "column does not exist".
const pgUndefinedColumn = "42703"

var (
	pgColumnRe = regexp.MustCompile(`column "([^"]+)"`)
	// PostgREST (the Supabase REST layer) phrases the same failure differently;
	// handled here so payloads replayed through either transport classify alike.
	postgrestColumnRe = regexp.MustCompile(`[Cc]ould not find the '([^']+)' column`)
)

// MissingColumn classifies an upsert error as schema drift and extracts the
// offending column name. This is the one seam coupling the self-healing retry
// to the destination's error format.
func MissingColumn(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedColumn {
		if m := pgColumnRe.FindStringSubmatch(pgErr.Message); m != nil {
			return m[1], true
		}
	}

	if m := postgrestColumnRe.FindStringSubmatch(err.Error()); m != nil {
		return m[1], true
	}

	return "", false
}
