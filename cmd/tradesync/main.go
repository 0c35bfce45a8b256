package main

import "github.com/vietddude/tradesync/internal/cli"

func main() {
	cli.Execute()
}
