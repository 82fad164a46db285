package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/launchpad-dev/launchpad/internal/userconfig"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read or change Launchpad's persisted user configuration",
}

func init() {
	configCmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := userconfig.Load()
			if err != nil {
				return err
			}
			val, ok := uc.Get(args[0])
			if !ok {
				exitWithCode(ExitUsage)
				return nil
			}
			fmt.Println(val)
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value and persist it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := userconfig.Load()
			if err != nil {
				return err
			}
			if err := uc.Set(args[0], args[1]); err != nil {
				printError(err)
				exitWithCode(ExitUsage)
				return nil
			}
			return uc.Save()
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every known configuration key and its current value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := userconfig.Load()
			if err != nil {
				return err
			}
			for _, key := range userconfig.SortedKeys() {
				val, _ := uc.Get(key)
				fmt.Printf("%s=%s\n", key, val)
			}
			return nil
		},
	})
}
