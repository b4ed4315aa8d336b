package main

import (
	"os"

	"github.com/soundprediction/azurellm/cmd/azurellm"
)

func main() {
	if err := azurellm.Execute(); err != nil {
		os.Exit(1)
	}
}
