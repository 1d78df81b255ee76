// Command livpredd serves football fixtures, predictions and standings from a
// cached upstream API and delivers match reminders for favorited fixtures.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
