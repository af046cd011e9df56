package bootstrap

import (
	"github.com/kbukum/segmentation/config"
)

// Config is the interface constraint for application configuration types.
// Any struct that embeds config.ServiceConfig gets GetServiceConfig through
// the promoted method and adds its own ApplyDefaults and Validate.
//
// Example:
//
//	type MyConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    BigQuery bq.Config   `yaml:"bigquery" mapstructure:"bigquery"`
//	}
//
//	app, err := bootstrap.NewApp[*MyConfig](&cfg)
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
