// Package paths locates sprite files on disk and over HTTP, and watches
// sprite directories for changes.
package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
)

// Extensions are the file name extensions of Aseprite files.
var Extensions = []string{".ase", ".aseprite"}

// IsSprite reports whether name has one of Extensions, ignoring case.
func IsSprite(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func possiblePathDirs() []string {
	dirs := []string{".", "sprites", "testdata"}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		dirs = append(dirs, dir, filepath.Join(dir, "sprites"))
		dirs = append(dirs, filepath.Join(exe+".runfiles", "go_aseprite", "sprites"))
	}
	return dirs
}

// Find locates the passed sprite file name and returns an absolute or
// relative path to find the file at, or an empty string.
//
// For example, for "hero.aseprite" it may return "sprites/hero.aseprite".
func Find(fileName string) string {
	if filepath.IsAbs(fileName) {
		if _, err := os.Stat(fileName); err == nil {
			return fileName
		}
		return ""
	}
	for _, dir := range possiblePathDirs() {
		path := filepath.Join(dir, fileName)
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			glog.V(1).Infof("paths.Find(%q)=%s", fileName, path)
			return path
		}
	}
	return ""
}

// FindDir returns the first existing sprites directory: ./sprites, or one
// next to the executable or in its runfiles. Without one it returns
// "sprites".
func FindDir() string {
	for _, dir := range possiblePathDirs() {
		if filepath.Base(dir) != "sprites" {
			continue
		}
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			glog.V(1).Infof("paths.FindDir()=%s", dir)
			return dir
		}
	}
	return "sprites"
}
