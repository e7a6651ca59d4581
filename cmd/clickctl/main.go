package main

import "github.com/mcoot/bananaclick/internal/cli"

func main() {
	cli.Execute()
}
