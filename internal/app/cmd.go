package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモード（デフォルト）。
	CommandServe Command = "serve"
	// CommandHealthcheck はヘルスチェックモード。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空、または未知のサブコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case string(CommandHealthcheck):
		return CommandHealthcheck
	case string(CommandServe):
		return CommandServe
	default:
		return CommandServe
	}
}
