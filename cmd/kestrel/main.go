package main

import "kestrel/cli"

func main() {
	cli.Execute()
}
