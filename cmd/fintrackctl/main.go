// Command fintrackctl administers a fintrack database: migrations, seeding,
// listings, reports and the transaction event stream.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
