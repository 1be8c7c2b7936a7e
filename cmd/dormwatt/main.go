package main

import "github.com/weilai0412/dormwatt/internal/cli"

func main() {
	cli.Execute()
}
