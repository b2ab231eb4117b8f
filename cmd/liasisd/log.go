package main

import "log"

// info/warn/errorLog mirror pico-tracker's [LEVEL]-prefixed log.Printf
// helpers, the daemon's general-purpose logging convention.
func info(format string, v ...any) {
	log.Printf("[INFO] "+format, v...)
}

func warn(format string, v ...any) {
	log.Printf("[WARN] "+format, v...)
}

func errorLog(format string, v ...any) {
	log.Printf("[ERROR] "+format, v...)
}
