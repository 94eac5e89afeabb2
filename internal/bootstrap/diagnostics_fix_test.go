package bootstrap

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"image-music-looper/internal/diagnostics"
	"image-music-looper/internal/domain"
)

// TestInstallOrFixOutputDirCreatesDirectory ensures output dir fix creates missing directories.
func TestInstallOrFixOutputDirCreatesDirectory(t *testing.T) {
	root := t.TempDir()
	outputDir := filepath.Join(root, "nested", "loops")

	settings := domain.Settings{
		OutputDir:     outputDir,
		DurationHours: 4,
	}
	fixed, changed, err := installOrFixOutputDir(settings)
	if err != nil {
		t.Fatalf("fix output dir: %v", err)
	}
	if changed {
		t.Fatal("expected settings to remain unchanged")
	}
	if fixed.OutputDir != outputDir {
		t.Fatalf("OutputDir = %s, want %s", fixed.OutputDir, outputDir)
	}
	if _, err := os.Stat(outputDir); err != nil {
		t.Fatalf("stat output dir: %v", err)
	}
}

// TestInstallOrFixDiagnosticOutputDirSavesDefault ensures an empty output
// folder is replaced and persisted.
func TestInstallOrFixDiagnosticOutputDirSavesDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	store := &fakeStore{settings: domain.Settings{DurationHours: 2}}
	app := &App{Store: store}

	if _, err := app.InstallOrFixDiagnostic(diagnostics.ItemOutputDir); err != nil {
		t.Fatalf("fix: %v", err)
	}
	if store.saved == nil {
		t.Fatal("expected settings to be saved")
	}
	if !strings.HasPrefix(store.saved.OutputDir, home) {
		t.Fatalf("OutputDir = %s, want default under %s", store.saved.OutputDir, home)
	}
	if _, err := os.Stat(store.saved.OutputDir); err != nil {
		t.Fatalf("stat output dir: %v", err)
	}
}

// TestInstallOrFixDiagnosticRoutesToolItems ensures every ffmpeg-related
// item triggers the installer.
func TestInstallOrFixDiagnosticRoutesToolItems(t *testing.T) {
	calls := 0
	original := installFFmpeg
	installFFmpeg = func() error {
		calls++
		return errors.New("no supported package manager found for test")
	}
	t.Cleanup(func() { installFFmpeg = original })

	app := &App{Store: &fakeStore{settings: domain.Settings{OutputDir: t.TempDir()}}}
	for _, id := range []string{diagnostics.ItemFFmpeg, diagnostics.ItemFFprobe, diagnostics.ItemBackend} {
		if _, err := app.InstallOrFixDiagnostic(id); err == nil {
			t.Fatalf("%s: expected installer error", id)
		}
	}
	if calls != 3 {
		t.Fatalf("installer calls = %d, want 3", calls)
	}
}

// TestInstallOrFixDiagnosticRejectsUnknownItem validates ID handling.
func TestInstallOrFixDiagnosticRejectsUnknownItem(t *testing.T) {
	app := &App{Store: &fakeStore{}}

	if _, err := app.InstallOrFixDiagnostic("model_path"); err == nil {
		t.Fatal("expected error for unknown item")
	}
	if _, err := app.InstallOrFixDiagnostic(" "); err == nil {
		t.Fatal("expected error for empty item")
	}
}

// TestEnsureLocalBinOnPATHPrependsOnce validates PATH handling.
func TestEnsureLocalBinOnPATHPrependsOnce(t *testing.T) {
	home := t.TempDir()
	t.Setenv("PATH", "/usr/bin")

	if err := ensureLocalBinOnPATH(home); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := ensureLocalBinOnPATH(home); err != nil {
		t.Fatalf("second call: %v", err)
	}

	want := localBinDir(home) + string(os.PathListSeparator) + "/usr/bin"
	if got := os.Getenv("PATH"); got != want {
		t.Fatalf("PATH = %s, want %s", got, want)
	}
}

// TestRequiresElevation validates which managers need root.
func TestRequiresElevation(t *testing.T) {
	if !requiresElevation("apt-get") {
		t.Fatal("apt-get should require elevation")
	}
	if requiresElevation("brew") {
		t.Fatal("brew should not require elevation")
	}
}
