// Command server runs the travel journal web application.
//
// Usage:
//
//	server [--config .env]                  start the HTTP server
//	server serve [--config .env]            same, explicitly
//	server adduser --username u --password p
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
