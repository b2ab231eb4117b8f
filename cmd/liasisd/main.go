// Command liasisd runs the Liasis control-plane daemon: it loads
// configuration, starts the BitTorrent domain, and serves the bencode
// control protocol and the observe/ debug surface until signaled to
// stop, in the flag-then-dispatch shape core/main.go uses for intunja.
package main

import (
	"flag"
	"fmt"
	"os"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "liasis.json", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		errorLog("%v", err)
		os.Exit(1)
	}
}
