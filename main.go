package main

import (
	"github.com/riskscope/riskscope/cmd"
)

func main() {
	cmd.Execute()
}
