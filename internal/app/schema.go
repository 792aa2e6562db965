package app

import (
	"context"

	"github.com/bobmcallan/putscan/internal/common"
	"github.com/bobmcallan/putscan/internal/interfaces"
)

const (
	schemaVersionKey = "schema_version"

	// SchemaVersion stamps the stored record layout. Bump when StockData or
	// ScanLog fields change shape; the stale records then age out through
	// retention instead of being migrated.
	SchemaVersion = "1"
)

// checkSchemaVersion compares the stored schema version against the code's
// SchemaVersion constant and stamps the current version on first run or
// mismatch.
func checkSchemaVersion(ctx context.Context, sm interfaces.StorageManager, logger *common.Logger) {
	kv := sm.KeyValueStore()

	stored, err := kv.Get(ctx, schemaVersionKey)
	if err == nil && stored == SchemaVersion {
		return
	}

	if err == nil {
		logger.Info().
			Str("stored", stored).
			Str("current", SchemaVersion).
			Msg("Schema version changed")
	} else {
		logger.Info().
			Str("current", SchemaVersion).
			Msg("Schema version not found, initializing")
	}

	if err := kv.Set(ctx, schemaVersionKey, SchemaVersion); err != nil {
		logger.Warn().Err(err).Msg("Failed to store schema version")
	}
}
