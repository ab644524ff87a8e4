package main

import "github.com/3leaps/queuectl/internal/cmd"

func main() {
	cmd.Execute()
}
