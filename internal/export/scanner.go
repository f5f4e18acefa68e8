package export

import (
	"os"
	"path/filepath"
	"strings"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
}

// ScanDir builds a session from a directory of outputs. Files under a
// top-level "input" directory become input images that keep their name;
// every other image becomes a historical output and every .mp4 a finished
// video task. Hidden directories are skipped. Files are visited in lexical
// order, which fixes the output ordinals.
func ScanDir(dir string) (*Session, error) {
	s := &Session{}

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != dir && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		switch {
		case imageExtensions[ext] && strings.HasPrefix(rel, InputFolder+"/"):
			name := strings.TrimSuffix(strings.TrimPrefix(rel, InputFolder+"/"), filepath.Ext(rel))
			s.InputImages = append(s.InputImages, Asset{
				URL:       path,
				Filename:  strings.ReplaceAll(name, "/", "-"),
				Folder:    InputFolder,
				Extension: strings.TrimPrefix(ext, "."),
			})
		case imageExtensions[ext]:
			s.HistoricalImages = append(s.HistoricalImages, HistoryItem{URL: path})
		case ext == "."+VideoExtension:
			s.VideoTasks = append(s.VideoTasks, VideoTask{
				ID:        rel,
				Status:    VideoStatusDone,
				ResultURL: path,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	base := filepath.Base(filepath.Clean(dir))
	if base == "." || base == string(filepath.Separator) {
		base = DefaultBaseName
	}
	s.BaseOutputFilename = base
	s.ZipFilename = base + ".zip"
	return s, nil
}
