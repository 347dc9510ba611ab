package main

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/datastore"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"github.com/vinicius-lino-figueiredo/docadapter/internal/logging"
)

const envPrefix = "DOCADAPTER"

// Configuration keys. Each one can be set by flag, by DOCADAPTER_* variable
// or in the config file.
const (
	keyConfig           = "config"
	keyURI              = "uri"
	keyCollectionPrefix = "collection-prefix"
	keyMaxTime          = "max-time"
	keyStoreOptions     = "store-options"
	keyLogLevel         = "log-level"
	keyLogFormat        = "log-format"
	keySchema           = "schema"
)

type cli struct {
	root   *cobra.Command
	v      *viper.Viper
	logger *slog.Logger

	// newAdapter opens the store used by the live commands.
	newAdapter func() (domain.StorageAdapter, error)
}

func newCLI() *cli {
	c := &cli{
		v:      viper.New(),
		logger: slog.Default(),
	}
	c.newAdapter = c.openAdapter

	c.root = &cobra.Command{
		Use:   "docadapter",
		Short: "Translate application requests into document store requests",
		Long: `docadapter compiles application predicates, updates, objects and class
schemas into the native document dialect, and inspects the classes of a
live store.

Examples:
  # Compile a predicate for the class described in post.yaml
  docadapter where -s post.yaml '{"score": {"$gt": 10}}'

  # Compile an update read from stdin
  echo '{"score": {"__op": "Increment", "amount": 1}}' | docadapter update -s post.yaml

  # List the classes of a store
  DOCADAPTER_URI=mongodb://localhost:27017/parse docadapter classes`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	flags := c.root.PersistentFlags()
	flags.String(keyConfig, "", "config file (default is ./docadapter.yaml or $HOME/.docadapter/docadapter.yaml)")
	flags.String(keyURI, datastore.DefaultURI, "store connection uri")
	flags.String(keyCollectionPrefix, "", "prefix of every class collection")
	flags.Duration(keyMaxTime, 0, "server side time limit of reads")
	flags.String(keyLogLevel, "warn", "log level: debug|info|warn|error")
	flags.String(keyLogFormat, logging.FormatText, "log format: text|json")
	for _, key := range []string{keyURI, keyCollectionPrefix, keyMaxTime, keyLogLevel, keyLogFormat} {
		_ = c.v.BindPFlag(key, flags.Lookup(key))
	}

	c.root.AddCommand(
		c.whereCommand(),
		c.updateCommand(),
		c.objectCommand(),
		c.schemaCommand(),
		c.pingCommand(),
		c.classesCommand(),
	)
	return c
}

// setup reads the configuration and builds the logger before any command
// runs.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if err := c.readConfig(cmd); err != nil {
		return err
	}
	logger, err := logging.New(c.v.GetString(keyLogLevel), c.v.GetString(keyLogFormat), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	c.logger = logger
	return nil
}

func (c *cli) readConfig(cmd *cobra.Command) error {
	c.v.SetEnvPrefix(envPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	file, _ := cmd.Flags().GetString(keyConfig)
	if file == "" {
		file = os.Getenv(envPrefix + "_CONFIG")
	}
	if file != "" {
		c.v.SetConfigFile(file)
		return c.v.ReadInConfig()
	}

	c.v.SetConfigName("docadapter")
	c.v.AddConfigPath(".")
	c.v.AddConfigPath("$HOME/.docadapter")
	if err := c.v.ReadInConfig(); err != nil && !errors.As(err, new(viper.ConfigFileNotFoundError)) {
		return err
	}
	return nil
}

func (c *cli) openAdapter() (domain.StorageAdapter, error) {
	return datastore.NewDatastore(
		datastore.WithURI(c.v.GetString(keyURI)),
		datastore.WithCollectionPrefix(c.v.GetString(keyCollectionPrefix)),
		datastore.WithMaxTime(c.v.GetDuration(keyMaxTime)),
		datastore.WithStoreOptions(c.v.GetStringMap(keyStoreOptions)),
		datastore.WithLogger(c.logger),
	)
}
