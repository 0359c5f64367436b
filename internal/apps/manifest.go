// Package apps assembles the module manifest: every mini-app the hub ships,
// each behind a lazy loader so nothing is constructed until first navigation.
package apps

import (
	"context"

	"go.uber.org/zap"

	"simhub/internal/apps/analytics"
	"simhub/internal/apps/chrono"
	"simhub/internal/apps/clicker"
	"simhub/internal/apps/dashboard"
	"simhub/internal/apps/geo"
	"simhub/internal/apps/lifearc"
	"simhub/internal/apps/persona"
	"simhub/internal/apps/stock"
	"simhub/internal/apps/trolley"
	"simhub/internal/apps/wordforge"
	"simhub/internal/registry"
	"simhub/internal/storage"
)

// Manifest returns the full registry manifest in dock order. The order is
// load-bearing: the shell binds the digit keys to manifest slots.
func Manifest(db *storage.DB, log *zap.Logger) []registry.Entry {
	if log == nil {
		log = zap.NewNop()
	}
	entries := []struct {
		id, name, icon string
		hint           []string
		build          func() registry.Module
	}{
		{"dashboard", "Dashboard", "◈", []string{"clicker", "stock"}, func() registry.Module { return dashboard.New(log) }},
		{"time", "Time", "◷", []string{"analytics"}, func() registry.Module { return chrono.New(log) }},
		{"lifearc", "LifeArc", "☗", nil, func() registry.Module { return lifearc.New(db.Keyed(lifearc.StorageKey), log) }},
		{"persona", "Persona", "◉", nil, func() registry.Module { return persona.New(log) }},
		{"wordforge", "WordForge", "✎", nil, func() registry.Module { return wordforge.New(db.Keyed(wordforge.StorageKey), log) }},
		{"geo", "Geo", "🌍", nil, func() registry.Module { return geo.New(db.Keyed(geo.StorageKey), log) }},
		{"clicker", "Clicker", "⛏", []string{"stock"}, func() registry.Module { return clicker.New(db.Keyed(clicker.StorageKey), log) }},
		{"stock", "Stock", "▲", []string{"analytics"}, func() registry.Module { return stock.New(db.Keyed(stock.StorageKey), log) }},
		{"trolley", "Trolley", "⚖", nil, func() registry.Module { return trolley.New(log) }},
		{"analytics", "Analytics", "◫", nil, func() registry.Module { return analytics.New(log) }},
	}

	manifest := make([]registry.Entry, 0, len(entries))
	for _, e := range entries {
		build := e.build
		manifest = append(manifest, registry.Entry{
			ID:          e.id,
			Name:        e.name,
			Icon:        e.icon,
			PreloadHint: e.hint,
			Loader: func(ctx context.Context) (registry.Module, error) {
				return build(), nil
			},
		})
	}
	return manifest
}
