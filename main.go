// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/vgate/vgate/cmd/vgate"

func main() {
	cmd.Execute()
}
