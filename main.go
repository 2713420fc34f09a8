package main

import "miniblob/cmd"

func main() {
	cmd.Execute()
}
