package config

import (
	"os"
	"path/filepath"

	"image-music-looper/internal/domain"
)

// AppDirName is the per-user directory holding settings and local tools.
const AppDirName = ".image-music-looper"

// DefaultSettings returns baseline form values for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		OutputDir:     filepath.Join(homeDir, "Videos", "Music Loops"),
		DurationHours: 4.0,
		AspectRatio:   domain.DefaultAspectRatioID,
		CrossfadeMs:   domain.AutoCrossfadeMs,
		AutoCrossfade: true,
		KeepOriginal:  false,
	}
}

// SettingsPath returns the settings file location under a home directory.
func SettingsPath(homeDir string) string {
	return filepath.Join(homeDir, AppDirName, "settings.json")
}
