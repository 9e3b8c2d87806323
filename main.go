package main

import (
	"streamflow/cmd"
)

func main() {
	cmd.Execute()
}
