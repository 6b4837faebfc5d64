package main

import "github.com/jkarimi/sms-campaigns/cmd"

func main() {
	cmd.Execute()
}
