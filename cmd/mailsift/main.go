package main

import "github.com/xaenox/mailsift/internal/cmd"

func main() {
	cmd.Execute()
}
