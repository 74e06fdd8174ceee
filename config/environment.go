package config

import (
	"os"
	"strings"
)

// Environment names the deployment the process runs in, read from APP_ENV.
type Environment string

const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentStaging     Environment = "staging"
	EnvironmentProduction  Environment = "production"
)

var environmentAliases = map[string]Environment{
	"dev":   EnvironmentDevelopment,
	"stag":  EnvironmentStaging,
	"stage": EnvironmentStaging,
	"prod":  EnvironmentProduction,
}

// configFile is the per-environment file that replaces DefaultConfigPath.
// Development uses the default file itself.
func (e Environment) configFile() string {
	if e == EnvironmentDevelopment {
		return ""
	}
	return "config/config." + string(e) + ".yml"
}

// ProductionLike reports whether the environment serves real traffic.
func (e Environment) ProductionLike() bool {
	return e == EnvironmentProduction || e == EnvironmentStaging
}

// AppEnvironment returns the APP_ENV environment, development when unset.
func AppEnvironment() Environment {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV")))
	if env == "" {
		return EnvironmentDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return Environment(env)
}

// ResolvePath returns the configuration file to load. An explicit path is
// kept as is; the default path is swapped for the APP_ENV specific file when
// that file exists.
func ResolvePath(path string) string {
	if path == "" {
		path = DefaultConfigPath
	}
	if path != DefaultConfigPath {
		return path
	}
	envFile := AppEnvironment().configFile()
	if envFile == "" {
		return path
	}
	if _, err := os.Stat(envFile); err != nil {
		return path
	}
	return envFile
}
