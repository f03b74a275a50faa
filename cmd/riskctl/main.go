package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmerrifield20/DeliveryRiskTracker/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

const defaultServer = "http://localhost:8080"

// globalOptions holds the persistent flags after config and env are merged.
type globalOptions struct {
	cfgFile string
	server  string
	token   string
	timeout time.Duration
	v       *viper.Viper
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{v: viper.New()}

	root := &cobra.Command{
		Use:   "riskctl",
		Short: "Delivery Risk Tracker CLI",
		Long: `riskctl scores delivery snapshots and manages projects on a Delivery
Risk Tracker server.

Scoring works offline:

  riskctl score --planned 50 --completed 20 --blockers 3 --bugs 10 --scope 25 --cycle 6
  riskctl score -f snapshot.yaml

Everything else talks to the server given by --server or ~/.riskctl/config.yaml.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.cfgFile, "config", "", "config file (default ~/.riskctl/config.yaml)")
	pf.StringVar(&opts.server, "server", "", "tracker base URL (default "+defaultServer+")")
	pf.StringVar(&opts.token, "token", "", "API bearer token for mutating calls")
	pf.DurationVar(&opts.timeout, "timeout", 10*time.Second, "HTTP timeout")

	root.AddCommand(
		newScoreCmd(opts),
		newProjectsCmd(opts),
		newMetricsCmd(opts),
		newReportCmd(opts),
		newTokenCmd(opts),
		newVersionCmd(),
	)
	return root
}

// load reads the config file and environment. Flags win over both.
func (o *globalOptions) load() error {
	v := o.v
	if o.cfgFile != "" {
		v.SetConfigFile(o.cfgFile)
	} else {
		home, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(home, ".riskctl"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix("riskctl")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	v.SetDefault("server", defaultServer)
	v.SetDefault("issuer", "delivery-risk-tracker")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || o.cfgFile != "" {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if o.server == "" {
		o.server = v.GetString("server")
	}
	if o.token == "" {
		o.token = v.GetString("token")
	}
	return nil
}

func (o *globalOptions) client() (*client.Client, error) {
	opts := []client.Option{client.WithTimeout(o.timeout)}
	if o.token != "" {
		opts = append(opts, client.WithBearerToken(o.token))
	}
	if o.v.GetBool("insecure") {
		opts = append(opts, client.WithInsecureSkipVerify())
	}
	return client.New(o.server, opts...)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the riskctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "riskctl %s\n", version)
		},
	}
}
