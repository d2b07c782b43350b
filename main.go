package main

import "github.com/nextlevelbuilder/clade/cmd"

func main() {
	cmd.Execute()
}
