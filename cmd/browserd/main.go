// Package main is the browserd worker: a long-lived browser automation
// process driven by line-delimited JSON requests on stdin.
package main

import (
	"os"
)

func main() {
	os.Exit(execute(os.Args[1:]))
}
