package main

import (
	"github.com/atriumdesk/bundlectl/pkg/cli"
	log "github.com/sirupsen/logrus"
)

func main() {
	if err := cli.New().Execute(); err != nil {
		log.Fatalf("error during command execution: %v", err)
	}
}
