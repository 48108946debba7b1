// Package player starts and stops athan playback on the server and on networked speakers.
package player

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/belphemur/athan-scheduler/internal/prayer"
)

// ErrMissingAsset is returned when the configured audio file does not exist
var ErrMissingAsset = errors.New("audio asset missing")

// Request describes one playback
type Request struct {
	Prayer prayer.Name `json:"prayer"`
	Date   string      `json:"date,omitempty"`
	File   string      `json:"file"`
	Volume int         `json:"volume"`
}

// Player plays an athan.
// Play returns once playback has started; a new Play replaces the current one.
type Player interface {
	Play(ctx context.Context, req Request) error
	Stop(ctx context.Context) error
}

// ResolveAsset returns the path of file, relative names being looked up in dir
func ResolveAsset(dir, file string) (string, error) {
	if file == "" {
		return "", fmt.Errorf("%w: no audio file configured", ErrMissingAsset)
	}
	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, file)
	}

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrMissingAsset, path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to check audio file %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrMissingAsset, path)
	}
	return path, nil
}
