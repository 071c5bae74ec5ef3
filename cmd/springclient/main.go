package main

import "github.com/01fortes/beanboot/internal/cli"

func main() {
	cli.Execute()
}
