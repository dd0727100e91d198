// cmd/tools/vapid-keygen/main.go
package main

import (
	"flag"
	"fmt"
	"os"

	webpush "github.com/SherClockHolmes/webpush-go"
)

func main() {
	envFormat := flag.Bool("env", false, "Print as .env assignments")
	flag.Parse()

	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating VAPID keys: %v\n", err)
		os.Exit(1)
	}

	if *envFormat {
		fmt.Printf("VAPID_PUBLIC_KEY=%s\n", publicKey)
		fmt.Printf("VAPID_PRIVATE_KEY=%s\n", privateKey)
		return
	}
	fmt.Printf("Public key:  %s\n", publicKey)
	fmt.Printf("Private key: %s\n", privateKey)
	fmt.Println("\nThe public key is the applicationServerKey browsers subscribe with; keep the private key on the push server only.")
}
