package main

import "github.com/pbrusco/musicians-helper/cmd"

func main() {
	cmd.Execute()
}
