//go:build integration

package integration

import (
	"path/filepath"
	"testing"
)

func TestSQLite(t *testing.T) {
	for _, scheme := range []string{"sqlite://", "sqlite+modernc://"} {
		t.Run(scheme, func(t *testing.T) {
			st := openClean(t, scheme+filepath.Join(t.TempDir(), "kbtrend.db"))
			runSchemaSuite(t, st)
			runStoreSuite(t, st)
		})
	}
}
