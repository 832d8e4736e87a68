package main

import "github.com/agent-matrix/matrixhub-admin/cmd/matrixhub-admin/cmd"

func main() {
	cmd.Execute()
}
