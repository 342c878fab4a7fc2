package main

import (
	"os"

	"github.com/sasyevadam01/sl-enterprise-sub002/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
