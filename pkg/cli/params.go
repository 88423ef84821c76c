package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/atriumdesk/bundlectl/pkg/bundle"
	"github.com/atriumdesk/bundlectl/pkg/directory"
	"github.com/atriumdesk/bundlectl/pkg/resolver"
)

const (
	envServerURL = "ATRIUM_SERVER_URL"
	envAPIKey    = "ATRIUM_API_KEY"

	appName = "atrium"
)

// serverParams are the directory service connection flags shared by every
// command that talks to the server.
type serverParams struct {
	server string
	apiKey string
}

func (p *serverParams) addFlagsTo(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.server, "server", "", "Directory service URL (defaults to $"+envServerURL+")")
	cmd.Flags().StringVar(&p.apiKey, "api-key", "", "Directory service API key (defaults to $"+envAPIKey+")")
}

func (p *serverParams) client() (*directory.Client, error) {
	server := p.server
	if server == "" {
		server = os.Getenv(envServerURL)
	}
	if server == "" {
		return nil, fmt.Errorf("no directory service URL: use --server or set %s", envServerURL)
	}
	apiKey := p.apiKey
	if apiKey == "" {
		apiKey = os.Getenv(envAPIKey)
	}
	return directory.NewClient(directory.Config{BaseURL: server, APIKey: apiKey})
}

// pipelineParams configure the external engines and target platform of the
// package pipeline.
type pipelineParams struct {
	platform    string
	resolverCmd []string
	builderCmd  []string
	workDir     string
}

func (p *pipelineParams) addFlagsTo(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.platform, "platform", runtime.GOOS, "Target platform (windows, linux, darwin)")
	cmd.Flags().StringSliceVar(&p.resolverCmd, "resolver", nil, "Resolver engine command and arguments")
	cmd.Flags().StringSliceVar(&p.builderCmd, "builder", nil, "Package builder command and arguments")
	cmd.Flags().StringVar(&p.workDir, "work-dir", "", "Work directory for engine inputs and artifacts (default: temp)")
}

func (p *pipelineParams) builder(client *directory.Client) (*bundle.Builder, error) {
	if len(p.resolverCmd) == 0 {
		return nil, fmt.Errorf("no resolver engine: use --resolver")
	}
	b := &bundle.Builder{
		Directory: client,
		Resolver: &resolver.ExecResolver{
			Command: p.resolverCmd,
			WorkDir: p.workDir,
			AppName: appName,
		},
		Platform: p.platform,
	}
	if len(p.builderCmd) > 0 {
		b.Executor = &bundle.ExecExecutor{
			Command:  p.builderCmd,
			WorkDir:  p.workDir,
			Platform: p.platform,
			AppName:  appName,
		}
	}
	return b, nil
}
