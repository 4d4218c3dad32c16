//go:build windows

package files

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/windows"
)

var executableExtensions = map[string]bool{".exe": true, ".bat": true, ".cmd": true, ".com": true}

func IsExecutable(path string) bool {
	if !executableExtensions[strings.ToLower(filepath.Ext(path))] {
		return false
	}
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return false
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		_, statErr := os.Stat(path)
		return statErr == nil
	}
	return attrs&windows.FILE_ATTRIBUTE_DIRECTORY == 0
}
