package main

import "github.com/0xcro3dile/workspace-rag/cmd"

func main() {
	cmd.Execute()
}
