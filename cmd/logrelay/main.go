package main

import "github.com/atikulmunna/logrelay/internal/cmd"

func main() {
	cmd.Execute()
}
