package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/arnavshah/shift-assign-api/pkg/auth"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env from project root
	_ = godotenv.Load("../.env")
	_ = godotenv.Load(".env")

	if len(os.Args) < 2 {
		fmt.Println("Usage: keygen <tenantID>")
		os.Exit(1)
	}

	tenantID, err := strconv.ParseInt(os.Args[1], 10, 64)
	if err != nil || tenantID <= 0 {
		fmt.Println("Error: tenantID must be a positive integer")
		os.Exit(1)
	}
	secret := os.Getenv("API_MASTER_SECRET")
	if secret == "" {
		fmt.Println("Error: API_MASTER_SECRET not found in .env")
		os.Exit(1)
	}

	apiKey := auth.New("", secret).GenerateTenantKey(tenantID)
	fmt.Printf("Generated Key for tenant %d:\n%s\n", tenantID, apiKey)
}
