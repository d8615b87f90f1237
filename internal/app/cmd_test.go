package app

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{
			name: "引数なしの場合はserve",
			args: []string{},
			want: CommandServe,
		},
		{
			name: "nilの場合はserve",
			args: nil,
			want: CommandServe,
		},
		{
			name: "serveを明示指定",
			args: []string{"serve"},
			want: CommandServe,
		},
		{
			name: "healthcheckを指定",
			args: []string{"healthcheck"},
			want: CommandHealthcheck,
		},
		{
			name: "未知のサブコマンドはserveにフォールバック",
			args: []string{"unknown"},
			want: CommandServe,
		},
		{
			name: "後続の引数は無視される",
			args: []string{"healthcheck", "extra"},
			want: CommandHealthcheck,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCommand(tt.args)
			if got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}
