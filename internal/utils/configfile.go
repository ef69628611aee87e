package utils

import (
	"os"

	"github.com/yungbote/batchcoord/internal/platform/logger"
	"gopkg.in/yaml.v3"
)

// LoadConfigFile reads the YAML file named by CONFIG_FILE, if set, and
// applies its scalar string values as process environment variables for any
// key not already present in the environment. Environment variables always
// win: this only fills gaps, so deployments can keep secrets in the
// environment and non-secret defaults in a checked-in file.
func LoadConfigFile(log *logger.Logger) error {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if log != nil {
			log.Warn("config file not readable, skipping", "path", path, "error", err)
		}
		return err
	}
	var fileVals map[string]string
	if err := yaml.Unmarshal(raw, &fileVals); err != nil {
		if log != nil {
			log.Warn("config file is not valid YAML, skipping", "path", path, "error", err)
		}
		return err
	}
	for k, v := range fileVals {
		if _, present := os.LookupEnv(k); present {
			continue
		}
		_ = os.Setenv(k, v)
	}
	if log != nil {
		log.Info("loaded config file", "path", path, "keys", len(fileVals))
	}
	return nil
}
