// Package config loads service configuration with Viper.
//
// Values come from a YAML file (config.yml searched in standard locations
// or passed explicitly), an optional .env file loaded with godotenv, and
// environment variables. Environment variables use the configured prefix
// and underscore-separated paths, for example SEGMENTATION_GCP_PROJECT_ID
// overrides gcp.project_id.
package config
