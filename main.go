package main

import "github.com/ngld/unitbuild/cmd"

func main() {
	cmd.Execute()
}
