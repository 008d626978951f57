package main

import "github.com/vietddude/hookbridge/internal/cli"

func main() {
	cli.Execute()
}
