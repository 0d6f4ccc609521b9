// Command generate-secret prints a random 32-byte hex value suitable for
// PORTAL_AUTH_JWT_SECRET. Rotating the secret invalidates every issued token.
//
//	go run scripts/generate-secret.go
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
)

func main() {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		log.Fatal(err)
	}

	fmt.Println("==========================================================")
	fmt.Println("JWT Signing Secret Generated")
	fmt.Println("==========================================================")
	fmt.Printf("\nPORTAL_AUTH_JWT_SECRET=%s\n\n", hex.EncodeToString(secret))
	fmt.Println("Store it in your secret manager; every replica must share it.")
	fmt.Println("==========================================================")
}
