package env

import "os"

const (
	ConfigEnvVarName  = "PROVISION_CONFIG"
	NoColorEnvVarName = "NO_COLOR"
	CUDATagEnvVarName = "PROVISION_CUDA_TAG"
)

// ConfigFromEnvironment returns the config file named by PROVISION_CONFIG, or "" when unset.
func ConfigFromEnvironment() string {
	return os.Getenv(ConfigEnvVarName)
}

// NoColor reports whether the user opted out of colored output (https://no-color.org).
func NoColor() bool {
	_, ok := os.LookupEnv(NoColorEnvVarName)
	return ok
}
