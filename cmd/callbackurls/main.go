package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohitkumar/callbackurls/agent"
	"github.com/mohitkumar/callbackurls/analytics"
	"github.com/mohitkumar/callbackurls/config"
	"github.com/mohitkumar/callbackurls/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "CALLBACK_URLS"

type cfg struct {
	config.Config
}
type cli struct {
	cfg cfg
}

func setupFlags(cmd *cobra.Command) error {
	flags := cmd.PersistentFlags()
	flags.String("config-file", "", "Path to config file.")
	flags.Int("http-port", 8080, "http port for rest endpoints")
	flags.String("base-url", "", "base url callback urls point at")
	flags.String("api-id", "", "api gateway id used to build the default base url")
	flags.String("stage", "", "api gateway stage used to build the default base url")
	flags.String("region", "us-east-1", "aws region")
	flags.String("issuer", "", "issuer recorded in every payload")
	flags.Bool("disable-output-parameters", false, "reject callback urls that use query parameters")
	flags.Bool("disable-post-actions", false, "reject post actions")
	flags.String("encryption", "none", "payload encryption: none, local or kms")
	flags.String("key-id", "", "kms key id used for payload encryption")
	flags.String("master-key", "", "master key used by local payload encryption")
	flags.String("sink", "memory", "workflow sink: memory, redis or sfn")
	flags.String("redis-addr", "localhost:6379", "comma separated list of redis host:port")
	flags.String("namespace", "callbackurls", "namespace used in storage")
	flags.String("redis-password", "", "redis password")
	flags.Int("redis-pool-size", 0, "redis connection pool size")
	flags.Bool("relay", false, "forward signals queued in redis to step functions")
	flags.Int("relay-batch-size", 10, "signals popped per relay poll")
	flags.Int("relay-poll-interval-ms", 1000, "relay poll interval")
	flags.Int("relay-max-retries", 3, "send attempts per signal before it is dropped")
	flags.Int("relay-retry-interval", 1, "seconds between relay send attempts")
	flags.String("analytics", string(analytics.STDOUT_DATA_COLLECTOR), "log event collector type")
	flags.String("analytics-file", "", "file log events are appended to")
	flags.String("log-level", "info", "log level")
	flags.Bool("development", false, "human readable logs")
	return viper.BindPFlags(flags)
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	var err error

	configFile := viper.GetString("config-file")
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err = viper.ReadInConfig(); err != nil {
			// it's ok if config file doesn't exist
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return err
			}
		}
	}
	viper.SetEnvPrefix(ENV_PREFIX)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.BaseURL = viper.GetString("base-url")
	c.cfg.ApiId = viper.GetString("api-id")
	c.cfg.Stage = viper.GetString("stage")
	c.cfg.Region = viper.GetString("region")
	c.cfg.Issuer = viper.GetString("issuer")
	c.cfg.DisableOutputParameters = viper.GetBool("disable-output-parameters")
	c.cfg.DisablePostActions = viper.GetBool("disable-post-actions")
	c.cfg.EncryptionType = config.EncryptionType(viper.GetString("encryption"))
	c.cfg.KeyId = viper.GetString("key-id")
	c.cfg.MasterKey = viper.GetString("master-key")
	c.cfg.SinkType = config.SinkType(viper.GetString("sink"))
	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.RedisConfig.Password = viper.GetString("redis-password")
	c.cfg.RedisConfig.PoolSize = viper.GetInt("redis-pool-size")
	c.cfg.RelayConfig.Enabled = viper.GetBool("relay")
	c.cfg.RelayConfig.BatchSize = viper.GetInt("relay-batch-size")
	c.cfg.RelayConfig.PollIntervalMs = viper.GetInt("relay-poll-interval-ms")
	c.cfg.RelayConfig.MaxRetries = viper.GetInt("relay-max-retries")
	c.cfg.RelayConfig.RetryIntervalSecond = viper.GetInt("relay-retry-interval")
	c.cfg.AnalyticsConfig.CollectorType = analytics.DataCollectorType(viper.GetString("analytics"))
	c.cfg.AnalyticsConfig.FileName = viper.GetString("analytics-file")
	c.cfg.LogLevel = viper.GetString("log-level")
	c.cfg.Development = viper.GetBool("development")
	if c.cfg.EncryptionType == config.ENCRYPTION_TYPE_NONE && c.cfg.KeyId != "" {
		c.cfg.EncryptionType = config.ENCRYPTION_TYPE_KMS
	}
	return logger.Init(c.cfg.LogLevel, c.cfg.Development)
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	var err error
	agent, err := agent.New(c.cfg.Config)
	if err != nil {
		return err
	}
	err = agent.Start()
	if err != nil {
		return err
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-agent.Done():
	}
	return agent.Shutdown()
}

func (c *cli) createUrls(cmd *cobra.Command, args []string) error {
	input, err := cmd.Flags().GetString("input")
	if err != nil {
		return err
	}
	var body []byte
	if input == "" || input == "-" {
		body, err = io.ReadAll(cmd.InOrStdin())
	} else {
		body, err = os.ReadFile(input)
	}
	if err != nil {
		return err
	}

	conf := c.cfg.Config
	// stdout carries the response
	if conf.AnalyticsConfig.CollectorType == analytics.STDOUT_DATA_COLLECTOR {
		conf.AnalyticsConfig.CollectorType = analytics.NOOP_DATA_COLLECTOR
	}
	a, err := agent.New(conf)
	if err != nil {
		return err
	}
	defer a.Shutdown()
	status, resp := a.CallbackService().HandleCreateUrls(context.Background(), body)
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	if status != http.StatusOK {
		return fmt.Errorf("create urls failed with status %d", status)
	}
	return nil
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:               "callbackurls",
		Short:             "Serve and create callback urls for workflow tasks",
		PersistentPreRunE: cli.setupConfig,
		RunE:              cli.run,
		SilenceUsage:      true,
	}
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the http server",
		RunE:  cli.run,
	}
	create := &cobra.Command{
		Use:   "create-urls",
		Short: "Create callback urls from a request file without the http server",
		RunE:  cli.createUrls,
	}
	create.Flags().String("input", "", "create urls request json file, - for stdin")
	cmd.AddCommand(serve, create)

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
