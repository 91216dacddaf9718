package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var sourceExts = []string{"jpg", "jpeg", "png", "gif", "webp"}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

// GetFileExtension returns the lower-cased file extension without the dot
func GetFileExtension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// IsImageFile reports whether filename has an extension the source loader decodes
func IsImageFile(filename string) bool {
	return slices.Contains(sourceExts, GetFileExtension(filename))
}

// OutputFilename builds <dir>/<prefix><input base><suffix>[_<variant>].<format>
func OutputFilename(inputFile, outputDir, prefix, suffix, variant, format string) string {
	baseName := filepath.Base(inputFile)
	if strings.Contains(inputFile, "://") {
		// URL sources: drop the query string and fall back to a fixed name
		baseName = filepath.Base(strings.SplitN(inputFile, "?", 2)[0])
		if baseName == "" || baseName == "/" || baseName == "." {
			baseName = "image"
		}
	}
	name := strings.TrimSuffix(baseName, filepath.Ext(baseName))

	if format == "" {
		format = GetFileExtension(baseName)
		if format == "" {
			format = "jpg"
		}
	}
	if variant != "" {
		suffix = suffix + "_" + variant
	}

	outputName := SanitizeFilename(fmt.Sprintf("%s%s%s.%s", prefix, name, suffix, format))
	return filepath.Join(outputDir, outputName)
}

// ListImageFiles recursively lists all source image files in a directory
func ListImageFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsImageFile(path) {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	return err == nil && info.IsDir()
}

// SanitizeFilename replaces characters that are invalid in file names
func SanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_",
	)
	return strings.Trim(replacer.Replace(filename), " .")
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
