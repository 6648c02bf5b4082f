package main

import "github.com/geolab/lake-stager/cmd"

func main() {
	cmd.Execute()
}
