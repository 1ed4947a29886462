package main

import "github.com/oshokin/lambda-packager/cmd/lambda-packager/cmd"

func main() {
	cmd.Execute()
}
