// Command alarm-client talks to a running alarm controller.
package main

import "github.com/oshokin/alarm-controller/cmd/alarm-client/cmd"

func main() {
	cmd.Execute()
}
