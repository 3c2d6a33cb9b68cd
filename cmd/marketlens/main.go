package main

import (
	"os"

	log "github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Errorf("marketlens: %v", err)
		os.Exit(1)
	}
}
