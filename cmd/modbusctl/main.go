// cmd/modbusctl/main.go
package main

import (
	"os"

	"github.com/tamzrod/modbus-client/cmd/modbusctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
