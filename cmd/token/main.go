// Command token mints an owner token for the logbook's write routes.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gokatarajesh/dsa-logbook/internal/auth/jwt"
	"github.com/gokatarajesh/dsa-logbook/internal/config"
)

func main() {
	var (
		subject = flag.String("subject", "owner", "Token subject")
		scope   = flag.String("scope", "logbook:write", "Token scope")
		ttl     = flag.Duration("ttl", 0, "Token lifetime (defaults to AUTH_TOKEN_TTL)")
		envFile = flag.String("env", "configs/.env", "Optional .env file to load")
	)
	flag.Parse()

	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := godotenv.Load(*envFile); err != nil {
		log.Debug().Err(err).Str("file", *envFile).Msg("no env file loaded")
	}

	var cfg struct {
		Name string `env:"APP_NAME" envDefault:"dsa-logbook"`
		Auth config.Auth
	}
	if err := env.Parse(&cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to parse auth configuration")
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal().Msg("AUTH_JWT_SECRET environment variable is required")
	}

	lifetime := cfg.Auth.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	tokens := jwt.NewManager(jwt.TokenConfig{
		Secret: []byte(cfg.Auth.JWTSecret),
		TTL:    lifetime,
		Issuer: cfg.Name,
	})
	token, err := tokens.GenerateToken(*subject, *scope)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to sign token")
	}

	log.Info().Str("subject", *subject).Time("expires_at", time.Now().Add(lifetime)).Msg("token issued")
	fmt.Println(token)
}
