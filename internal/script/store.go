package script

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Write stores a script as YAML.
func Write(s *Script, path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Read loads a script from a YAML file.
func Read(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &s, nil
}

// PathFor returns the file a script is saved under inside dir.
func PathFor(dir string, s *Script) string {
	return filepath.Join(dir, fmt.Sprintf("script_%s.yaml", s.ID))
}

// FindLatest returns the most recently modified script file in dir.
func FindLatest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read scripts directory: %w", err)
	}

	type file struct {
		path string
		mod  int64
	}
	var files []file
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, file{filepath.Join(dir, entry.Name()), info.ModTime().UnixNano()})
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no script files found in %s", dir)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].mod > files[j].mod })
	return files[0].path, nil
}
