// Command alarm-server runs the home alarm controller.
package main

import "github.com/oshokin/alarm-controller/cmd/alarm-server/cmd"

func main() {
	cmd.Execute()
}
