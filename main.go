/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "respcore/cmd"

func main() {
	cmd.Execute()
}
