// Command issue-token prints a signed staff access token. Staff sign-in is
// handled outside this service; operators mint tokens with this tool.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"callcenter/internal/auth"
	"callcenter/internal/config"
	"callcenter/internal/rbac"
	"callcenter/pkg/logger"
)

func main() {
	userID := flag.String("user", "", "staff user id (required)")
	role := flag.String("role", rbac.RoleViewer, "role: admin, operator or viewer")
	withRefresh := flag.Bool("refresh", false, "also print a refresh token")
	flag.Parse()

	log := logger.New(os.Getenv("APP_ENV"))

	if *userID == "" {
		flag.Usage()
		os.Exit(2)
	}
	if !rbac.IsKnownRole(*role) {
		log.Error("unknown role", slog.String("role", *role))
		os.Exit(2)
	}

	cfg, err := config.LoadAuth()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	m, err := auth.NewManager(cfg)
	if err != nil {
		log.Error("auth init failed", slog.Any("err", err))
		os.Exit(1)
	}

	pair, err := m.IssuePair(time.Now(), *userID, *role)
	if err != nil {
		log.Error("token issuance failed", slog.Any("err", err))
		os.Exit(1)
	}
	fmt.Println(pair.AccessToken)
	if *withRefresh {
		fmt.Println(pair.RefreshToken)
	}
}
