// Package config handles input from etc/*.toml files
package config

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/BurntSushi/toml"
)

// envConfigJSON is the environment variable holding a JSON config override.
const envConfigJSON = "AFFILIATE_AGGREGATOR_CONFIG_JSON"

// envTwoFactorKey is the environment fallback for the 2FA encryption key.
const envTwoFactorKey = "TWO_FACTOR_ENCRYPTION_KEY"

// defaultTwoFactorKey is the insecure fallback used when no key is
// configured at all. Unsafe for production; a warning is logged when it is
// picked up.
const defaultTwoFactorKey = "default-key-change-in-production"

// ReadConfig from config file.
func ReadConfig(path string) (Config, error) {
	var (
		c             Config
		jsonConfigEnv string
		err           error
	)

	// Read main configuration
	if path == "" {
		path = "./etc/"
	}

	if _, err = toml.DecodeFile(path+"main.toml", &c); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	// override it from env
	jsonConfigEnv = os.Getenv(envConfigJSON)

	if jsonConfigEnv != "" {
		c, err = decodeAndMergeConfig(c, jsonConfigEnv)
		if err != nil {
			return c, err
		}
	}

	applyTwoFactorDefaults(&c)

	return c, validate(c)
}

func decodeAndMergeConfig(c Config, configAsJSON string) (Config, error) {
	err := json.Unmarshal([]byte(configAsJSON), &c)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to merge json config from env")
	}

	return c, nil
}

// applyTwoFactorDefaults fills the 2FA key from the environment, falling
// back to the hardcoded development key as a last resort.
func applyTwoFactorDefaults(c *Config) {
	if c.TwoFactor.EncryptionKey == "" {
		c.TwoFactor.EncryptionKey = os.Getenv(envTwoFactorKey)
	}

	if c.TwoFactor.EncryptionKey == "" {
		c.TwoFactor.EncryptionKey = defaultTwoFactorKey

		log.Warn().Msg("two-factor encryption key not configured, using insecure default")
	}
}

// DumpConfig config as TOML String.
func DumpConfig(c Config) (string, error) {
	var buffer bytes.Buffer
	t := toml.NewEncoder(&buffer)

	if err := t.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// DumpConfigJSON config as JSON String.
func DumpConfigJSON(c Config) (string, error) {
	var buffer bytes.Buffer
	j := json.NewEncoder(&buffer)
	j.SetIndent("", "  ")

	if err := j.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// validate minimal config settings needed to boot the service.
func validate(c Config) error {
	invalidErrMessage := "invalid config"

	// validate webserver listening port
	if c.Webserver.Port == 0 {
		return errors.Wrap(ErrWebServerPortCanNotBeZero, invalidErrMessage)
	}

	// validate access-control-allow-origin
	if c.Webserver.URL == "" {
		return errors.Wrap(ErrEmptyURL, invalidErrMessage)
	}

	if c.Webserver.ShutDownTime == 0 {
		c.Webserver.ShutDownTime = 5 // set default of 5 seconds
	}

	return nil
}
