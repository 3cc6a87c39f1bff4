package downloader

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/nijaru/trackdl/models"
)

// errNoMatch is returned by LatestFile when dir holds no matching file.
var errNoMatch = errors.New("no matching file")

// LatestFile returns the most recently modified regular file in dir whose
// name ends with ext (case-insensitive). Ties keep directory order.
func LatestFile(dir, ext string) (*models.OutputFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", dir)
	}

	var files []models.OutputFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, models.OutputFile{
			Path:    filepath.Join(dir, entry.Name()),
			Name:    entry.Name(),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}

	if len(files) == 0 {
		return nil, errNoMatch
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})

	return &files[0], nil
}
