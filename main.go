package main

import "github.com/charukad/traceiq/cmd"

func main() {
	cmd.Execute()
}
