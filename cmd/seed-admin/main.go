package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/raine/lease-to-own/internal/config"
	"github.com/raine/lease-to-own/internal/storage"
)

func main() {
	var (
		userID     string
		email      string
		name       string
		phone      string
		telegramID int64
		token      string
	)

	flag.StringVar(&userID, "id", "", "User ID of the admin")
	flag.StringVar(&email, "email", "", "Admin email (also used for alert emails)")
	flag.StringVar(&name, "name", "", "Admin display name")
	flag.StringVar(&phone, "phone", "", "Phone number for SMS alerts (E.164)")
	flag.Int64Var(&telegramID, "telegram", 0, "Telegram chat ID for alert messages")
	flag.StringVar(&token, "token", "", "API bearer token (generated if empty)")
	flag.Parse()

	if userID == "" || email == "" {
		fmt.Fprintf(os.Stderr, "Usage: seed-admin -id <user_id> -email <email> [-name <name>] [-phone <phone>] [-telegram <chat_id>] [-token <token>]\n")
		os.Exit(1)
	}

	config.LoadEnvFile()
	cfg := config.Load()

	if cfg.ContactKey == "" {
		fmt.Fprintf(os.Stderr, "CONTACT_KEY not set\n")
		os.Exit(1)
	}

	encryptionKey, err := storage.DeriveKey(cfg.ContactKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error deriving encryption key: %v\n", err)
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath, encryptionKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database at %s: %v\n", cfg.DBPath, err)
		os.Exit(1)
	}
	defer store.Close()

	if token == "" {
		if token, err = newToken(); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
			os.Exit(1)
		}
	}

	// The service syncs the claim from the role on its own; set it here too
	// so the token works before the service has seen the user.
	if err := store.SaveUser(&storage.User{ID: userID, Email: email, Role: storage.RoleAdmin}); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving user: %v\n", err)
		os.Exit(1)
	}
	if err := store.SetUserClaims(userID, map[string]bool{storage.ClaimAdmin: true}); err != nil {
		fmt.Fprintf(os.Stderr, "Error setting claims: %v\n", err)
		os.Exit(1)
	}
	if err := store.SetUserToken(userID, token); err != nil {
		fmt.Fprintf(os.Stderr, "Error setting token: %v\n", err)
		os.Exit(1)
	}
	err = store.SaveAdmin(&storage.Admin{
		UserID:         userID,
		Name:           name,
		Email:          email,
		Phone:          phone,
		TelegramChatID: telegramID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error saving admin contact details: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Admin %s saved\n", userID)
	fmt.Printf("API token: %s\n", token)
}

// tokenBytes is the amount of randomness in a generated bearer token.
const tokenBytes = 32

// newToken returns a random hex-encoded bearer token.
func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
