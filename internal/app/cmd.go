package app

import (
	"fmt"
	"io"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	CommandServe       Command = "serve"
	CommandWorker      Command = "worker"
	CommandMigrate     Command = "migrate"
	CommandHealthcheck Command = "healthcheck" // distroless環境でのDockerヘルスチェック用
	CommandHelp        Command = "help"
)

var commands = []struct {
	cmd     Command
	summary string
}{
	{CommandServe, "HTTP APIサーバーを起動する（既定）"},
	{CommandWorker, "期限切れセッションと再設定トークンを定期削除する"},
	{CommandMigrate, "未適用のマイグレーションを適用する"},
	{CommandHealthcheck, "ローカルの/healthを確認する"},
	{CommandHelp, "このヘルプを表示する"},
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空の場合はCommandServeを返す。2番目以降の引数は無視する。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	name := strings.TrimLeft(args[0], "-")
	if name == "h" {
		name = string(CommandHelp)
	}
	for _, c := range commands {
		if string(c.cmd) == name {
			return c.cmd, nil
		}
	}
	return "", fmt.Errorf("unknown command %q", args[0])
}

// printUsage はサブコマンドの一覧を出力する。
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: jobboard [command]")
	fmt.Fprintln(w)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-12s %s\n", c.cmd, c.summary)
	}
}
