package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept Go
// duration strings ("15m", "168h") or integer nanoseconds. Fields left out of
// the file keep their previous value.
type JsonConfig struct {
	EndpointAddrGRPC *string         `json:"endpoint_addr_grpc"`
	LogLevel         *string         `json:"log_level"`
	StoreBackend     *string         `json:"store_backend"`
	DatabaseDSN      *string         `json:"database_dsn"`
	RedisAddr        *string         `json:"redis_addr"`
	RedisPassword    *string         `json:"redis_password"`
	RedisDB          *int            `json:"redis_db"`
	SigningAlgorithm *string         `json:"signing_algorithm"`
	AccessTokenTTL   *timex.Duration `json:"access_token_ttl"`
	RefreshTokenTTL  *timex.Duration `json:"refresh_token_ttl"`
	PrivateKeyPath   *string         `json:"private_key_path"`
	PublicKeyPath    *string         `json:"public_key_path"`
	S3Region         *string         `json:"s3_region"`
	S3BaseEndpoint   *string         `json:"s3_base_endpoint"`
	S3AccessKey      *string         `json:"s3_access_key"`
	S3SecretKey      *string         `json:"s3_secret_key"`
}

// parseJSON overlays the file named by -c/-config, if any.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&cfg.LogLevel, c.LogLevel)
	setString(&cfg.StoreBackend, c.StoreBackend)
	setString(&cfg.DatabaseDSN, c.DatabaseDSN)
	setString(&cfg.RedisAddr, c.RedisAddr)
	setString(&cfg.RedisPassword, c.RedisPassword)
	if c.RedisDB != nil {
		cfg.RedisDB = *c.RedisDB
	}
	setString(&cfg.SigningAlgorithm, c.SigningAlgorithm)
	if c.AccessTokenTTL != nil {
		cfg.AccessTokenTTL = c.AccessTokenTTL.Duration
	}
	if c.RefreshTokenTTL != nil {
		cfg.RefreshTokenTTL = c.RefreshTokenTTL.Duration
	}
	setString(&cfg.PrivateKeyPath, c.PrivateKeyPath)
	setString(&cfg.PublicKeyPath, c.PublicKeyPath)
	setString(&cfg.S3Region, c.S3Region)
	setString(&cfg.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&cfg.S3AccessKey, c.S3AccessKey)
	setString(&cfg.S3SecretKey, c.S3SecretKey)

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
