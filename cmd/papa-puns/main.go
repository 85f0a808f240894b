package main

import "papa-puns/internal/cli"

func main() {
	cli.Execute()
}
