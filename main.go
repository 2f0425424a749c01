package main

import "github.com/rotblauer/aploc/cmd"

func main() {
	cmd.Execute()
}
