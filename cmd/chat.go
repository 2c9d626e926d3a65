package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Build a form interactively in the terminal",
	Run:   runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	sessions, store, backend, err := buildStack(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if store != nil {
		defer store.Close()
	}

	const session = "cli"

	fmt.Printf("\nformforge (provider: %s)\n", backend.Name())
	fmt.Println("Commands:")
	fmt.Println("- Describe what you want, e.g. 'add a required email field'")
	fmt.Println("- 'show' to see the current form")
	fmt.Println("- 'reset' to start over")
	fmt.Println("- 'quit' to exit")
	fmt.Println(strings.Repeat("-", 50))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nWhat would you like to do? ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "quit", "exit", "q":
			fmt.Println("\nBye.")
			return
		case "show":
			current := sessions.Form(session)
			if len(current.Fields) == 0 {
				fmt.Println("\nNo form created yet")
			} else {
				fmt.Println("\nCurrent form structure:")
				fmt.Println(current.IndentedJSON())
			}
			continue
		case "reset":
			sessions.Reset(session)
			fmt.Println("\nForm reset.")
			continue
		}

		fmt.Println("\nGenerating form structure...")
		rev, err := sessions.Revise(cmd.Context(), session, input)
		if err != nil {
			fmt.Printf("\nFailed to update form: %v\n", err)
			continue
		}

		fmt.Printf("\n%s\n", rev.Message)
		fmt.Println(rev.Form.IndentedJSON())
	}
}
