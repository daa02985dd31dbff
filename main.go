package main

import "github.com/Yates-Labs/storyprompt/cmd"

func main() {
	cmd.Execute()
}
