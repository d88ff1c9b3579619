package cmd

import (
	"fmt"

	"ocrbot/internal/config"
	"ocrbot/internal/quota"
	"ocrbot/internal/store"
)

// Store file names inside DATA_DIR.
const (
	statsFile = "stats.txt"
	quotaFile = "ai_quota.txt"
	prefsFile = "lang_prefs.txt"
	usersFile = "users.txt"
)

// stores bundles the persisted state shared by the commands.
type stores struct {
	stats *store.Stats
	quota *quota.Tracker
	prefs *store.Preferences
	users *store.Users
}

func openStores(cfg *config.Config) (*stores, error) {
	const op = "openStores"

	admins, err := cfg.Admins()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	stats, err := store.OpenStats(cfg.StorePath(statsFile))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	counts, err := store.OpenCounters(cfg.StorePath(quotaFile))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	prefs, err := store.OpenPreferences(cfg.StorePath(prefsFile), cfg.DefaultLanguage)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	users, err := store.OpenUsers(cfg.StorePath(usersFile))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &stores{
		stats: stats,
		quota: quota.NewTracker(counts, cfg.AIQuotaLimit, admins),
		prefs: prefs,
		users: users,
	}, nil
}
