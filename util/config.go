package util

import (
	_ "embed"
	"fmt"
	"gopkg.in/yaml.v3"
	"log"
	"os"
	"strconv"
)

const Name = "mergodon"
const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		Host               string
		HttpPort           int    `yaml:"httpPort"`
		DbFile             string `yaml:"dbFile"`
		PreferredOrigin    string `yaml:"preferredOrigin"`
		MinLengthToCompare int    `yaml:"minLengthToCompare"`
		MaxHourDistance    int    `yaml:"maxHourDistance"`
		WithFetch          bool   `yaml:"withFetch"`
		FetchQueueSize     int    `yaml:"fetchQueueSize"`
	}
}

func ReadConf() (*AppConfig, error) {

	c := &AppConfig{}

	// Try to resolve config file path (local first, then user dir)
	configPath := ResolveFilePath(ConfigFileName)

	var buf []byte
	var err error

	// Try to read from resolved path
	buf, err = os.ReadFile(configPath)
	if err != nil {
		// If file doesn't exist, use embedded config and create user config file
		log.Printf("Config file not found at %s, using embedded defaults", configPath)
		buf = embeddedConfig

		// Try to write default config to user config directory
		configDir, dirErr := GetConfigDir()
		if dirErr == nil {
			userConfigPath := configDir + "/" + ConfigFileName
			writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0644)
			if writeErr != nil {
				log.Printf("Warning: could not write default config to %s: %v", userConfigPath, writeErr)
			} else {
				log.Printf("Created default config file at %s", userConfigPath)
			}
		}
	}

	err = yaml.Unmarshal(buf, c)
	if err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	envHost := os.Getenv("MERGODON_HOST")
	envHttpPort := os.Getenv("MERGODON_HTTPPORT")
	envDbFile := os.Getenv("MERGODON_DBFILE")
	envPreferredOrigin := os.Getenv("MERGODON_PREFERRED_ORIGIN")
	envMinLength := os.Getenv("MERGODON_MIN_LENGTH_TO_COMPARE")
	envMaxHours := os.Getenv("MERGODON_MAX_HOUR_DISTANCE")
	envWithFetch := os.Getenv("MERGODON_WITH_FETCH")

	if envHost != "" {
		c.Conf.Host = envHost
	}

	if envHttpPort != "" {
		v, err := strconv.Atoi(envHttpPort)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.HttpPort = v
	}

	if envDbFile != "" {
		c.Conf.DbFile = envDbFile
	}

	if envPreferredOrigin != "" {
		c.Conf.PreferredOrigin = envPreferredOrigin
	}

	if envMinLength != "" {
		v, err := strconv.Atoi(envMinLength)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.MinLengthToCompare = v
	}

	if envMaxHours != "" {
		v, err := strconv.Atoi(envMaxHours)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.MaxHourDistance = v
	}

	if envWithFetch == "true" {
		c.Conf.WithFetch = true
	}

	return c, nil
}
