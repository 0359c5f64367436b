// Package appkit holds the small amount of plumbing every mini-app shares:
// loading and saving its private, app-scoped state blob. Mini-apps own their
// blobs exclusively; nothing else reads them.
package appkit

import (
	"encoding/json"

	"go.uber.org/zap"
)

// Blob is the single-key persistence handle a mini-app owns, satisfied by
// storage.Keyed.
type Blob interface {
	Load() ([]byte, error)
	Save([]byte) error
}

// LoadLocal unmarshals the app's blob over defaults. Missing or malformed
// blobs leave the defaults untouched, mirroring how the hub recovers its own
// snapshot.
func LoadLocal[T any](blob Blob, defaults T, log *zap.Logger) T {
	out := defaults
	data, err := blob.Load()
	if err != nil {
		if log != nil {
			log.Warn("loading app state failed, using defaults", zap.Error(err))
		}
		return defaults
	}
	if len(data) == 0 {
		return defaults
	}
	if err := json.Unmarshal(data, &out); err != nil {
		if log != nil {
			log.Warn("app state corrupt, using defaults", zap.Error(err))
		}
		return defaults
	}
	return out
}

// SaveLocal persists the app's state best-effort.
func SaveLocal[T any](blob Blob, v T, log *zap.Logger) {
	data, err := json.Marshal(v)
	if err != nil {
		if log != nil {
			log.Warn("encoding app state failed", zap.Error(err))
		}
		return
	}
	if err := blob.Save(data); err != nil && log != nil {
		log.Warn("saving app state failed", zap.Error(err))
	}
}
