package main

import "metamakers.org/rfid-access-mqtt/cli_commands"

func main() {
	cli_commands.Execute()
}
