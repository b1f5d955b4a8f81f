package main

import (
	_ "time/tzdata"

	"github.com/example/ridebook/cmd"
)

func main() {
	cmd.Execute()
}
