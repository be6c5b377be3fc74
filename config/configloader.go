package config

import (
	"fmt"
	"strings"
)

// LoadConfigFromFile overlays the JSON file at filePath on appConfig.
func LoadConfigFromFile(filePath string, appConfig any) error {
	configSource, err := newFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to create File config source: %w", err)
	}

	if err := Load(configSource, appConfig); err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	return nil
}

// LoadConfigFromEnv overlays environment variables, after loading dotEnvFiles,
// on appConfig.
func LoadConfigFromEnv(appConfig *AppConfig, dotEnvFiles ...string) error {
	if err := Load(&Env{DotEnvFiles: dotEnvFiles}, appConfig); err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	return nil
}

// LoadConfigFromRigel reads appConfig from the Rigel schema app/module at
// version, config configName, stored in the comma separated etcdEndpoints.
func LoadConfigFromRigel(etcdEndpoints, app, module string, version int, configName string, appConfig *AppConfig) error {
	configSource, err := NewRigel(strings.Split(etcdEndpoints, ","), app, module, version, configName)
	if err != nil {
		return fmt.Errorf("failed to create Rigel config source: %w", err)
	}

	if err := Load(configSource, appConfig); err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	return nil
}
