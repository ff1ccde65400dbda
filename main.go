package main

import "obdkit/cmd"

func main() {
	cmd.Execute()
}
