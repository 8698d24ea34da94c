package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var askChatID int64

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Answer one query from the command line",
	Long:  "Routes a single query and prints the answer. With --chat the query joins that chat's history and both turns are saved; --chat 0 starts a new saved chat.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initChat(ctx, "route")
		if err != nil {
			return err
		}
		defer env.Close()

		if !cmd.Flags().Changed("chat") {
			fmt.Fprintln(cmd.OutOrStdout(), env.Router.Route(ctx, args[0], nil))
			return nil
		}

		answer, chatID, err := env.Chat.Send(ctx, askChatID, args[0])
		if err != nil {
			return err
		}
		zap.L().Info("answer saved", zap.Int64("chat_id", chatID))
		fmt.Fprintln(cmd.OutOrStdout(), answer)
		return nil
	},
}

func init() {
	askCmd.Flags().Int64Var(&askChatID, "chat", 0, "save the exchange in this chat (0 creates one)")
	rootCmd.AddCommand(askCmd)
}
