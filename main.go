package main

import "github.com/kiesman99/stitchy/cmd"

func main() {
	cmd.Execute()
}
