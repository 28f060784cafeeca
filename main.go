package main

import "github.com/Project-Sylos/IndexTree/internal/cli"

func main() {
	cli.Execute()
}
