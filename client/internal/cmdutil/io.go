package cmdutil

import (
	"context"
	"fmt"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"nexdb/client/internal/api"
	"nexdb/client/internal/config"
	"os"
	"os/signal"
	"time"
)

const (
	EnvServerSecret = "NEXDB_SERVER_SECRET"
	EnvUserPassword = "NEXDB_USER_PASSWORD"
)

var (
	loadingSpinner = spinner.New(spinner.CharSets[0], time.Millisecond*100, spinner.WithWriter(os.Stderr))
)

// ServiceFactory builds the API service on demand so commands such as 'config init' work
// before a configuration exists
type ServiceFactory func() (api.Service, error)

func DefaultFactory() (api.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	client := api.NewClient(api.Config{
		Host:      cfg.Host,
		AccessKey: cfg.AccessKey,
	})
	return api.NewService(client), nil
}

func PrintE(message string) {
	println()
	color.Red(message)
}

func Print(message string) {
	_, _ = fmt.Fprintln(os.Stdout, message)
}

func PrintS(message string) {
	println()
	color.Green(message)
}

func PrintW(message string) {
	color.Yellow(message)
}

func StartLoading(message string) {
	loadingSpinner.Prefix = message
	loadingSpinner.Start()
}

func StopLoading() {
	loadingSpinner.Stop()
}

// Context returns the command context cancelled on interrupt
func Context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt)
}

func RenderTable(header table.Row, rows []table.Row) string {
	tw := table.NewWriter()
	tw.AppendHeader(header)
	for _, row := range rows {
		tw.AppendRow(row)
		tw.AppendSeparator()
	}
	return tw.Render()
}

// ReadSecret takes the secret from the env variable, or asks for it with a masked prompt
func ReadSecret(env, label string) (string, error) {
	if secret, ok := os.LookupEnv(env); ok {
		return secret, nil
	}

	prompt := promptui.Prompt{
		Label: label,
		Mask:  '*',
	}
	return prompt.Run()
}

func Confirm(label string) bool {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	_, err := prompt.Run()
	return err == nil
}

func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func FormatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("02-01-2006 15:04")
}
