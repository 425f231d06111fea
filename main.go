// Package main is the entry point for the harvester service.
package main

import "github.com/structharvest/harvester/cmd"

func main() {
	cmd.Execute()
}
