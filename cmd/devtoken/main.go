// Command devtoken prints a signed access token for local testing against
// the cart API. It refuses to run with SHOPCART_APP_ENV=prod.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/shopcart-backend/pkg/auth"
	"github.com/angelmondragon/shopcart-backend/pkg/config"
)

func main() {
	_ = godotenv.Load()

	userID := flag.String("user", "", "user id to embed in the token")
	sessionID := flag.String("session", "", "session id (jti); random when empty")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.App.IsProd() {
		fmt.Fprintln(os.Stderr, "devtoken is disabled in prod")
		os.Exit(1)
	}

	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{
		UserID: *userID,
		JTI:    *sessionID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "mint token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
