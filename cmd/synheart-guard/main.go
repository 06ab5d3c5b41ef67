package main

import "github.com/synheart/synheart-guard/internal/cli"

func main() {
	cli.Execute()
}
