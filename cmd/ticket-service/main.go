package main

import (
	"fmt"
	"os"

	"field-ticket-service/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ticket-service: %v\n", err)
		os.Exit(1)
	}
}
