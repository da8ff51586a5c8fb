package main

import "github.com/pathline/lis/cmd/lisctl/command"

func main() {
	command.Execute()
}
