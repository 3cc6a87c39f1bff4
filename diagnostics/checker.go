package diagnostics

import (
	"os"
	"path/filepath"

	"github.com/nijaru/trackdl/models"
)

// Paths are the configured locations reported by the checker.
type Paths struct {
	FFmpegPath     string
	SpotdlPath     string
	DownloadFolder string
}

// Checker reports resolved paths and whether they exist. It never creates
// or modifies anything.
type Checker struct {
	paths      Paths
	stat       func(string) (os.FileInfo, error)
	getwd      func() (string, error)
	executable func() (string, error)
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker(paths Paths) *Checker {
	return &Checker{
		paths:      paths,
		stat:       os.Stat,
		getwd:      os.Getwd,
		executable: os.Executable,
	}
}

// Check builds the report for an optional folder override. An empty
// folder reports the default folder in both positions.
func (c *Checker) Check(folder string) models.PathReport {
	cwd, _ := c.getwd()
	exe, _ := c.executable()

	defaultFolder := c.abs(cwd, c.paths.DownloadFolder)
	customFolder := defaultFolder
	if folder != "" {
		customFolder = c.abs(cwd, folder)
	}

	return models.PathReport{
		CurrentDirectory:      cwd,
		FFmpegPath:            c.paths.FFmpegPath,
		FFmpegExists:          c.exists(c.paths.FFmpegPath),
		SpotdlPath:            c.paths.SpotdlPath,
		SpotdlExists:          c.exists(c.paths.SpotdlPath),
		DefaultDownloadFolder: defaultFolder,
		DefaultFolderExists:   c.exists(defaultFolder),
		CustomDownloadFolder:  customFolder,
		CustomFolderExists:    c.exists(customFolder),
		PythonExecutable:      exe,
	}
}

func (c *Checker) abs(cwd, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(cwd, path)
}

func (c *Checker) exists(path string) bool {
	_, err := c.stat(path)
	return err == nil
}
