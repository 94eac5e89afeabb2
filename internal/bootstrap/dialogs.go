package bootstrap

import (
	"context"
	"strings"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var imageDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Images",
		Pattern:     "*.jpg;*.jpeg;*.png;*.bmp",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

var audioDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Audio files",
		Pattern:     "*.mp3;*.wav;*.m4a;*.flac",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// Dialogs is the native dialog surface the App drives.
type Dialogs interface {
	OpenFile(title string, filters []wailsruntime.FileFilter) (string, error)
	OpenDirectory(title, defaultDir string) (string, error)
	Info(title, message string) error
	Error(title, message string) error
	Confirm(title, message string) (bool, error)
}

// wailsDialogs shows dialogs through the Wails runtime of a started App.
type wailsDialogs struct {
	runtimeContext func() (context.Context, error)
}

// OpenFile opens a native file dialog.
func (d *wailsDialogs) OpenFile(title string, filters []wailsruntime.FileFilter) (string, error) {
	ctx, err := d.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   title,
		Filters: filters,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(path), nil
}

// OpenDirectory opens a native directory picker.
func (d *wailsDialogs) OpenDirectory(title, defaultDir string) (string, error) {
	ctx, err := d.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:            title,
		DefaultDirectory: defaultDir,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(path), nil
}

// Info shows an informational message box.
func (d *wailsDialogs) Info(title, message string) error {
	return d.message(wailsruntime.InfoDialog, title, message)
}

// Error shows an error message box.
func (d *wailsDialogs) Error(title, message string) error {
	return d.message(wailsruntime.ErrorDialog, title, message)
}

// Confirm asks a yes/no question.
func (d *wailsDialogs) Confirm(title, message string) (bool, error) {
	ctx, err := d.runtimeContext()
	if err != nil {
		return false, err
	}

	answer, err := wailsruntime.MessageDialog(ctx, wailsruntime.MessageDialogOptions{
		Type:          wailsruntime.QuestionDialog,
		Title:         title,
		Message:       message,
		Buttons:       []string{"Yes", "No"},
		DefaultButton: "Yes",
		CancelButton:  "No",
	})
	if err != nil {
		return false, err
	}
	return strings.EqualFold(answer, "yes") || strings.EqualFold(answer, "ok"), nil
}

func (d *wailsDialogs) message(kind wailsruntime.DialogType, title, message string) error {
	ctx, err := d.runtimeContext()
	if err != nil {
		return err
	}

	_, err = wailsruntime.MessageDialog(ctx, wailsruntime.MessageDialogOptions{
		Type:    kind,
		Title:   title,
		Message: message,
	})
	return err
}
