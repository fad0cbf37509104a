package main

import (
	"github.com/ledgersync/backend/cmd"
)

func main() {
	cmd.Execute()
}
