package browser

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// ScreenshotSink persists screenshots taken for failed lookups
type ScreenshotSink interface {
	Save(step string, png []byte) (string, error)
}

// FileScreenshots writes screenshots to <dir>/<test>_<step>_<browser>.png
type FileScreenshots struct {
	dir      string
	testName string
	browser  string
	logger   *slog.Logger
}

// NewFileScreenshots creates a sink writing below dir
func NewFileScreenshots(dir, testName, browser string, logger *slog.Logger) *FileScreenshots {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileScreenshots{
		dir:      dir,
		testName: testName,
		browser:  browser,
		logger:   logger,
	}
}

// Path returns the file a screenshot for step is written to
func (s *FileScreenshots) Path(step string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s_%s.png", s.testName, step, s.browser))
}

// Save writes png and returns its path. An existing file is overwritten.
func (s *FileScreenshots) Save(step string, png []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	path := s.Path(step)
	if _, err := os.Stat(path); err == nil {
		s.logger.Warn("overwriting screenshot", "path", path)
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}

	s.logger.Debug("screenshot written", "path", path, "bytes", len(png))
	return path, nil
}
