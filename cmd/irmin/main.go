// Copyright © 2018 One Concern

package main

import (
	"github.com/oneconcern/irmin/cmd/irmin/cmd"
)

func main() {
	cmd.Execute()
}
