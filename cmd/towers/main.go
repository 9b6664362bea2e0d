package main

import "github.com/mcoot/towers-go/internal/cli"

func main() {
	cli.Execute()
}
