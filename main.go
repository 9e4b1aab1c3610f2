package main

import "github.com/andresmejia3/memento/cmd"

func main() {
	cmd.Execute()
}
