// Command organize groups the tracks in a CSV file by BPM band and Camelot
// code and prints them in mixing order.
package main

import (
	"errors"
	"flag"
	"os"

	log "github.com/sirupsen/logrus"

	"Camelot-Organizer-Go/pkg/cli"
)

func main() {
	if err := cli.Run(); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatal(err)
	}
}
