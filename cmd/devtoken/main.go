// devtoken mints a development access token signed with a local RSA private
// key, standing in for the accounts service when running the stack locally.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bidhub/auctions/internal/auth"
)

func main() {
	keyPath := flag.String("key", "dev_private_key.pem", "path to the RSA private key PEM")
	userID := flag.String("user-id", "", "user uuid (random when empty)")
	userType := flag.String("user-type", auth.UserTypeBuyer, "Buyer or Seller")
	profileType := flag.String("profile-type", auth.ProfileTypeIndividual, "Individual or Company")
	country := flag.String("country", "Georgia", "profile country")
	nickname := flag.String("nickname", "dev", "profile nickname")
	verified := flag.Bool("verified", true, "KYC verified flag")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *userType != auth.UserTypeBuyer && *userType != auth.UserTypeSeller {
		fmt.Fprintf(os.Stderr, "user-type must be %s or %s\n", auth.UserTypeBuyer, auth.UserTypeSeller)
		os.Exit(1)
	}

	id := uuid.New().String()
	if *userID != "" {
		if _, err := uuid.Parse(*userID); err != nil {
			fmt.Fprintf(os.Stderr, "invalid user-id: %v\n", err)
			os.Exit(1)
		}
		id = *userID
	}

	pemBytes, err := os.ReadFile(*keyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read key: %v\n", err)
		os.Exit(1)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse key: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	claims := auth.Claims{
		UserID:          id,
		TokenType:       "access",
		UserType:        *userType,
		UserProfileType: *profileType,
		IsVerified:      *verified,
		Country:         *country,
		Nickname:        *nickname,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "user_id: %s (%s, %s)\n", id, *userType, *profileType)
	fmt.Println(token)
}
