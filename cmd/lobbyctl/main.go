package main

import "github.com/mcoot/gamelobby/internal/cli"

func main() {
	cli.Execute()
}
