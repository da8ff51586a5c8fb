package main

import "github.com/pathline/lis/api"

func main() {
	api.MainLoop()
}
