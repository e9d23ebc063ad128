package main

import (
	"os"
	_ "time/tzdata"

	appLog "remhind/internal/log"
)

var version = "0.1.0-dev"

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		appLog.Error("remhind failed", err)
		os.Exit(1)
	}
}
