package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
)

var serverFlags = []string{"-a", "-l", "-s", "-d", "-r", "-alg", "-t", "-rd", "-priv", "-pub"}

// parseFlags overlays command-line flags:
//
//	-a string    gRPC bind address (e.g. ":50051")
//	-l string    log level (debug, info, warn, error)
//	-s string    refresh token store: postgres, redis or memory
//	-d string    PostgreSQL DSN
//	-r string    redis address
//	-alg string  JWS signing algorithm (e.g. RS256)
//	-t int       access token lifetime, minutes
//	-rd int      refresh token lifetime, days
//	-priv string private key PEM path or s3://bucket/key
//	-pub string  public key PEM path or s3://bucket/key
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.EndpointAddrGRPC, "a", cfg.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.StoreBackend, "s", cfg.StoreBackend, "refresh token store backend")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.RedisAddr, "r", cfg.RedisAddr, "redis address")
	fs.StringVar(&cfg.SigningAlgorithm, "alg", cfg.SigningAlgorithm, "signing algorithm")
	accessMinutes := fs.Int("t", int(cfg.AccessTokenTTL/time.Minute), "access token lifetime (in minutes)")
	refreshDays := fs.Int("rd", int(cfg.RefreshTokenTTL/(24*time.Hour)), "refresh token lifetime (in days)")
	fs.StringVar(&cfg.PrivateKeyPath, "priv", cfg.PrivateKeyPath, "private key path")
	fs.StringVar(&cfg.PublicKeyPath, "pub", cfg.PublicKeyPath, "public key path")

	if err := fs.Parse(flagx.FilterArgs(args, serverFlags)); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	// lifetimes are overridden only when given explicitly
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			cfg.AccessTokenTTL = time.Duration(*accessMinutes) * time.Minute
		case "rd":
			cfg.RefreshTokenTTL = time.Duration(*refreshDays) * 24 * time.Hour
		}
	})
	return nil
}
