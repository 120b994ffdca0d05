package internal

import (
	"io"
	"log"
	"os"
)

// InitLogging routes the standard logger to stdout with microsecond
// timestamps. Quiet mode discards everything, which keeps piped text
// and CSV output clean.
func InitLogging(quiet bool) {
	if quiet {
		log.SetOutput(io.Discard)
		return
	}
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
}
