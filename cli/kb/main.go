package main

import (
	"os"

	kbcmder "github.com/papercomputeco/kb/cmd/kb"
)

func main() {
	cmd := kbcmder.NewKBCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
