package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/provisionkit/provision/pkg/errors"
	"github.com/provisionkit/provision/pkg/util/console"
	"github.com/provisionkit/provision/pkg/util/files"
)

const maxSearchDepth = 100

// GetConfig loads the project config.
//
// An explicit path (from --config or PROVISION_CONFIG) must exist. Otherwise
// configFilename is searched for from startDir upwards, and when none is found
// the built-in defaults are used with startDir as the project root.
func GetConfig(startDir, explicitPath, configFilename string) (*Config, string, error) {
	if explicitPath != "" {
		path, err := files.ResolvePath(startDir, explicitPath)
		if err != nil {
			return nil, "", err
		}
		exists, err := files.Exists(path)
		if err != nil {
			return nil, "", err
		}
		if !exists {
			return nil, "", errors.ConfigNotFound(fmt.Sprintf("%s does not exist", path))
		}
		config, err := loadConfigFromFile(path)
		if err != nil {
			return nil, "", err
		}
		return config, filepath.Dir(path), config.Validate()
	}

	rootDir, err := findProjectRootDir(startDir, configFilename)
	if errors.IsConfigNotFound(err) {
		console.Debugf("%s, using built-in defaults", err)
		return DefaultConfig(), startDir, nil
	}
	if err != nil {
		return nil, "", err
	}

	config, err := loadConfigFromFile(filepath.Join(rootDir, configFilename))
	if err != nil {
		return nil, "", err
	}
	return config, rootDir, config.Validate()
}

// Given a file path, attempt to load a config from that file
func loadConfigFromFile(file string) (*Config, error) {
	contents, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	config, err := FromYAML(contents)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	config.filename = file
	return config, nil
}

// Given a directory, find the config file in that directory
func findConfigPathInDirectory(dir string, configFilename string) (configPath string, err error) {
	filePath := filepath.Join(dir, configFilename)
	exists, err := files.Exists(filePath)
	if err != nil {
		return "", fmt.Errorf("Failed to scan directory %s for %s: %s", dir, filePath, err)
	} else if exists {
		return filePath, nil
	}

	return "", errors.ConfigNotFound(fmt.Sprintf("%s not found in %s", configFilename, dir))
}

// Walk up the directory tree to find the root of the project.
// The project root is defined as the directory housing the config file.
func findProjectRootDir(startDir string, configFilename string) (string, error) {
	dir := startDir
	for i := 0; i < maxSearchDepth; i++ {
		switch _, err := findConfigPathInDirectory(dir, configFilename); {
		case err != nil && !errors.IsConfigNotFound(err):
			return "", err
		case err == nil:
			return dir, nil
		case dir == "." || dir == filepath.Dir(dir):
			return "", errors.ConfigNotFound(fmt.Sprintf("%s not found in %s (or in any parent directories)", configFilename, startDir))
		}

		dir = filepath.Dir(dir)
	}

	return "", errors.ConfigNotFound(fmt.Sprintf("No %s found in parent directories.", configFilename))
}
