package main

import "ContractFinder/internal/cli"

func main() {
	cli.Execute()
}
