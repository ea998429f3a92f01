package main

import "github.com/vertextoedge/sharepoint-list-sync/internal/cli"

const version = "0.1.0"

func main() {
	cli.Execute(version)
}
