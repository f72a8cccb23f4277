package main

import (
	_ "modernc.org/sqlite"

	"github.com/nostrvault/nostrvault/cmd/vaultcli/cmd"
)

func main() {
	cmd.Execute()
}
