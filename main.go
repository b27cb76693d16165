package main

import (
	"os"

	"github.com/openlgu/badyet/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
