package main

import "os"

func main() {
	if err := newCmdRoot().Execute(); err != nil {
		os.Exit(1)
	}
}
