package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the ohno version",
	Run: func(cmd *cobra.Command, args []string) {
		if out.JSON() {
			out.EmitJSON(map[string]string{"version": Version})
			return
		}
		fmt.Printf("ohno %s\n", Version)
	},
}
