package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// Pipeline settings keys. Settings are persisted rows read at job start and
// passed explicitly down the call chain — there is no process-wide mutable
// configuration.
const (
	SettingSimilarityThreshold = "dedup.similarity_threshold"
	SettingChunkStrategy       = "chunk.strategy"
	SettingEmbedBatchSize      = "embed.batch_size"
)

// PipelineSettings is the tunable pipeline configuration snapshot a worker
// reads at the start of each job.
type PipelineSettings struct {
	SimilarityThreshold float64
	ChunkStrategy       string
	EmbedBatchSize      int
}

// DefaultPipelineSettings returns the defaults used when no row exists.
func DefaultPipelineSettings() PipelineSettings {
	return PipelineSettings{
		SimilarityThreshold: 0.85,
		ChunkStrategy:       "balanced",
		EmbedBatchSize:      32,
	}
}

// GetSetting returns a setting value, or "" when unset.
func (db *DB) GetSetting(key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting upserts a setting value.
func (db *DB) SetSetting(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// LoadPipelineSettings reads the settings snapshot, falling back to
// defaults for unset or malformed values.
func (db *DB) LoadPipelineSettings() (PipelineSettings, error) {
	s := DefaultPipelineSettings()

	if v, err := db.GetSetting(SettingSimilarityThreshold); err != nil {
		return s, err
	} else if v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			s.SimilarityThreshold = f
		}
	}

	if v, err := db.GetSetting(SettingChunkStrategy); err != nil {
		return s, err
	} else if v != "" {
		s.ChunkStrategy = v
	}

	if v, err := db.GetSetting(SettingEmbedBatchSize); err != nil {
		return s, err
	} else if v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.EmbedBatchSize = n
		}
	}

	return s, nil
}
