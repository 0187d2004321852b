package main

import "github.com/tunekit/tunekit/cmd"

func main() {
	cmd.Execute()
}
